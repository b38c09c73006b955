package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

// ParticipantRow is one line of the roster. Session is empty for the local
// participant.
type ParticipantRow struct {
	Participant domain.Participant
	Self        bool
	Session     string
}

func ParticipantTableView(rows []ParticipantRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	data := make([][]string, 0, len(rows))
	for i, row := range rows {
		p := row.Participant
		name := p.UserInfo.Name
		if row.Self {
			name += " (you)"
		}
		if p.IsHost {
			name = IconHost + " " + name
		}
		session := row.Session
		if session == "" {
			session = "-"
		}
		data = append(data, []string{
			fmt.Sprintf("%d", i+1),
			name,
			mediaFlags(p.MediaState),
			session,
			p.JoinedAt.Local().Format(time.TimeOnly),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "Media", "Session", "Joined").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func mediaFlags(state domain.MediaState) string {
	flags := []string{"mic off", "cam off"}
	if state.Audio {
		flags[0] = "mic"
	}
	if state.Video {
		flags[1] = "cam"
	}
	if state.ScreenShare {
		flags = append(flags, "screen")
	}
	return strings.Join(flags, ", ")
}

func ChatLineView(message domain.ChatMessage) string {
	ts := message.Timestamp.Local().Format(time.TimeOnly)
	return fmt.Sprintf("%s %s %s %s",
		IconChat,
		MutedStyle.Render(ts),
		SenderStyle.Render(message.Sender.Name+":"),
		message.Text,
	)
}

func RoomView(roomID string, isHost bool) string {
	role := "participant"
	if isHost {
		role = "host"
	}
	content := fmt.Sprintf("%s Joined room %s\n%s",
		IconRoom,
		BoldStyle.Foreground(Primary).Render(roomID),
		MutedStyle.Render("You are the "+role+". Type a message and press enter, /help for commands."),
	)
	return RoomBoxStyle.Render(content)
}
