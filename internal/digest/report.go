package digest

import (
	"fmt"
	"strings"

	"github.com/phrazzld/tasks-api/internal/domain"
)

// Subject is the subject line of every digest email.
const Subject = "Pending tasks from Tasks Manager"

// BuildBody renders the digest text, one line per status in the order given.
func BuildBody(user string, counts []domain.StatusCount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hey %s, here is your daily report:\n", user)
	for _, c := range counts {
		fmt.Fprintf(&b, "Task %s : %d\n", c.Status, c.Total)
	}
	return b.String()
}

// DisplayName is the greeting name for an address: its local part.
func DisplayName(email string) string {
	if at := strings.LastIndex(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
