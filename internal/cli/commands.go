package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errQuit = errors.New("quit")

type callControls interface {
	SendChat(text string) error
	SetAudioEnabled(enabled bool) error
	SetVideoEnabled(enabled bool) error
	StartScreenShare(ctx context.Context) error
	StopScreenShare() error
	ShowRoster()
}

const helpText = `Commands:
  /mute, /unmute         toggle the microphone
  /camera on|off         toggle the camera
  /share, /unshare       start or stop screen sharing
  /who                   show participants
  /quit                  leave the room
Anything else is sent as a chat message.`

// dispatch runs one line typed by the user. errQuit asks the caller to leave.
func dispatch(ctx context.Context, call callControls, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return call.SendChat(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/mute":
		return call.SetAudioEnabled(false)
	case "/unmute":
		return call.SetAudioEnabled(true)
	case "/camera":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return fmt.Errorf("usage: /camera on|off")
		}
		return call.SetVideoEnabled(fields[1] == "on")
	case "/share":
		return call.StartScreenShare(ctx)
	case "/unshare":
		return call.StopScreenShare()
	case "/who":
		call.ShowRoster()
		return nil
	case "/help":
		fmt.Println(helpText)
		return nil
	case "/quit", "/leave":
		return errQuit
	default:
		return fmt.Errorf("unknown command %s, try /help", fields[0])
	}
}
