package bot

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Commands start with '!' and are one-shot: they never touch session state,
// so a user mid-wizard cannot reach them (state handlers run first).

const commandHelp = `🤖 *רשימת פקודות הבוט:*

!bot - הצגת רשימה זו
!git - קישור לפרויקט GitHub
!env - מידע על סביבת הריצה

💬 *מילות מפתח:*
שלום, היי, תודה`

// isCommand reports whether text should go to the command table.
func isCommand(text string) bool {
	return strings.HasPrefix(text, "!")
}

func (d *Dispatcher) handleCommand(ctx context.Context, chat, text string) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "!bot":
		d.send(ctx, chat, commandHelp)
	case "!git":
		d.send(ctx, chat, fmt.Sprintf("💻 *GitHub Repository*\n\n🔗 %s", d.repoURL))
	case "!env":
		d.send(ctx, chat, fmt.Sprintf("🛠 *סביבת ריצה*\n\nGo %s\n%s/%s",
			runtime.Version(), runtime.GOOS, runtime.GOARCH))
	default:
		// Unknown commands are ignored, not bounced to the menu.
	}
}
