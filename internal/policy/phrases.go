package policy

import (
	"strconv"
	"strings"

	"workflow/internal/domain"
)

var phrases = map[domain.Kind][]string{
	domain.KindDueSoon: {
		"⏰ Hey procrastinator! '{title}' is due in {days} days. Time to panic? 🙃",
		"🚨 Assignment alert! '{title}' is coming up in {days} days. Netflix can wait!",
		"⚡ Friendly reminder: '{title}' due in {days} days. Your future self will thank you!",
		"🎯 '{title}' needs attention in {days} days. Let's not make it a last-minute miracle!",
		"📚 Psst... '{title}' is due in {days} days. Coffee up and let's do this!",
	},
	domain.KindDueTomorrow: {
		"⏳ '{title}' is due tomorrow. Tonight is the night!",
		"🌙 Last call: '{title}' is due tomorrow. Sleep can wait a little.",
		"📌 Heads up! '{title}' is due tomorrow. Finish strong!",
		"🏁 Final stretch: '{title}' is due tomorrow. You've got this!",
		"🔔 Don't forget, '{title}' is due tomorrow. Future you says thanks!",
	},
	domain.KindOverdue: {
		"😱 Uh oh! '{title}' is now OVERDUE. Time to channel your inner superhero! 🦸",
		"🔥 DEFCON 1: '{title}' is late! But hey, better late than never, right?",
		"⚠️ Houston, we have a problem. '{title}' crossed the deadline. Damage control time!",
		"💀 '{title}' has entered the danger zone. Quick, before your teacher notices!",
		"🚀 Emergency! '{title}' is overdue. Activate turbo mode NOW!",
	},
}

var titles = map[domain.Kind]string{
	domain.KindOverdue:     "Assignment Overdue",
	domain.KindDueTomorrow: "Due Tomorrow",
	domain.KindDueSoon:     "Due Soon",
}

func render(tmpl, title string, days int) string {
	r := strings.NewReplacer("{title}", title, "{days}", strconv.Itoa(days))
	return r.Replace(tmpl)
}
