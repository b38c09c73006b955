package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_call/internal/client"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/ui"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"github.com/pion/webrtc/v3"
	"github.com/spf13/cobra"
)

const defaultSTUN = "stun:stun.l.google.com:19302"

type joinOptions struct {
	server       string
	room         string
	name         string
	userID       string
	create       bool
	stun         []string
	turn         []string
	turnUser     string
	turnPass     string
	maxReconnect time.Duration
}

var joinOpts joinOptions

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join a call room",
	Long: `Join a call room and stay in it until interrupted.

Examples:
  peer join --name bot --room ABC123
  peer join --name bot --create
  peer join --server wss://calls.example.com/ws --name bot --room standup`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if joinOpts.name == "" {
			return errors.New("--name is required")
		}
		if joinOpts.room == "" && !joinOpts.create {
			return errors.New("either --room or --create is required")
		}
		return runJoin(cmd.Context(), joinOpts, os.Stdin)
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&joinOpts.server, "server", envOr("SIGNAL_URL", "ws://localhost:8080/ws"), "signaling gateway websocket url")
	f.StringVar(&joinOpts.room, "room", "", "room id to join, generated when empty with --create")
	f.StringVar(&joinOpts.name, "name", envOr("PEER_NAME", ""), "display name")
	f.StringVar(&joinOpts.userID, "user-id", "", "stable user id for call history")
	f.BoolVar(&joinOpts.create, "create", false, "join as the room creator")
	f.StringSliceVar(&joinOpts.stun, "stun", nil, "STUN server urls, overrides the gateway's list")
	f.StringSliceVar(&joinOpts.turn, "turn", nil, "TURN server urls, overrides the gateway's list")
	f.StringVar(&joinOpts.turnUser, "turn-user", os.Getenv("TURN_USERNAME"), "TURN username")
	f.StringVar(&joinOpts.turnPass, "turn-pass", os.Getenv("TURN_PASSWORD"), "TURN password")
	f.DurationVar(&joinOpts.maxReconnect, "max-reconnect", 30*time.Second, "how long to keep reconnecting to the gateway")
}

func runJoin(parent context.Context, opts joinOptions, input io.Reader) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default().With(slog.String("name", opts.name))

	factory, err := client.NewPionFactory(resolveICEServers(ctx, log, opts))
	if err != nil {
		return err
	}

	signaling := client.NewSignalingClient(opts.server, log, client.SignalingOptions{
		MaxReconnect: opts.maxReconnect,
	})
	if err := signaling.Connect(ctx); err != nil {
		return err
	}
	defer signaling.Close()

	media := client.NewMediaController(log, client.NewSilentSource(log), signaling)
	if err := media.Start(ctx); err != nil {
		return err
	}

	session := &callSession{renderer: newDrainRenderer(log), media: media}
	session.orch = client.NewOrchestrator(log, signaling, factory, media, session.renderer, session.hooks())
	defer session.orch.Close()

	userID := opts.userID
	if userID == "" {
		userID = uuid.New().String()
	}
	if err := session.orch.Join(opts.room, domain.UserInfo{ID: userID, Name: opts.name}, opts.create); err != nil {
		return err
	}

	lines := readLines(input)
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			ui.PrintInfo("Leaving the room")
			return nil
		case msg, ok := <-signaling.Incoming():
			if !ok {
				return signaling.Err()
			}
			if err := session.orch.HandleMessage(msg); err != nil {
				log.Warn("failed to apply signaling message", slog.String("type", msg.Type), sl.Err(err))
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := dispatch(ctx, session, line); err != nil {
				if errors.Is(err, errQuit) {
					ui.PrintInfo("Leaving the room")
					return nil
				}
				ui.PrintWarning(err.Error())
			}
		}
	}
}

// resolveICEServers prefers servers given on the command line, then the
// gateway's list, then a public STUN server.
func resolveICEServers(ctx context.Context, log *slog.Logger, opts joinOptions) []webrtc.ICEServer {
	if len(opts.stun) > 0 || len(opts.turn) > 0 {
		return client.ICEServers(opts.stun, opts.turn, opts.turnUser, opts.turnPass)
	}
	servers, err := fetchICEServers(ctx, http.DefaultClient, opts.server)
	if err != nil {
		log.Warn("using default ice servers", sl.Err(err))
		return client.ICEServers([]string{defaultSTUN}, nil, "", "")
	}
	if len(servers) == 0 {
		return client.ICEServers([]string{defaultSTUN}, nil, "", "")
	}
	return servers
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// callSession binds the orchestrator and media controller to the terminal.
type callSession struct {
	orch     *client.Orchestrator
	media    *client.MediaController
	renderer *drainRenderer
}

func (c *callSession) hooks() client.Hooks {
	return client.Hooks{
		OnJoined: func(roomID, selfID string, isHost bool) {
			fmt.Println(ui.RoomView(roomID, isHost))
		},
		OnParticipants: func([]domain.Participant) {
			c.ShowRoster()
		},
		OnChat: func(message domain.ChatMessage) {
			fmt.Println(ui.ChatLineView(message))
		},
		OnSessionState: func(remoteID string, state client.SessionState) {
			switch state {
			case client.StateConnected:
				ui.PrintSuccess("Connected to " + c.nameOf(remoteID))
			case client.StateFailed:
				ui.PrintWarning("Lost the connection to " + c.nameOf(remoteID))
			}
		},
		OnError: func(err error) {
			ui.PrintError(err.Error())
		},
	}
}

func (c *callSession) SendChat(text string) error {
	return c.orch.SendChat(text)
}

func (c *callSession) SetAudioEnabled(enabled bool) error {
	return c.media.SetAudioEnabled(enabled)
}

func (c *callSession) SetVideoEnabled(enabled bool) error {
	return c.media.SetVideoEnabled(enabled)
}

func (c *callSession) StartScreenShare(ctx context.Context) error {
	return c.media.StartScreenShare(ctx)
}

func (c *callSession) StopScreenShare() error {
	return c.media.StopScreenShare()
}

func (c *callSession) ShowRoster() {
	fmt.Println(ui.ParticipantTableView(c.rows()))
}

func (c *callSession) rows() []ui.ParticipantRow {
	selfID := c.orch.SelfID()
	participants := c.orch.Participants()
	rows := make([]ui.ParticipantRow, 0, len(participants))
	for _, p := range participants {
		row := ui.ParticipantRow{Participant: p, Self: p.ConnectionID == selfID}
		if s := c.orch.Session(p.ConnectionID); s != nil {
			row.Session = string(s.State())
			if n := c.renderer.Packets(p.ConnectionID); n > 0 {
				row.Session = fmt.Sprintf("%s, %d pkts", row.Session, n)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (c *callSession) nameOf(connectionID string) string {
	for _, p := range c.orch.Participants() {
		if p.ConnectionID == connectionID {
			return p.UserInfo.Name
		}
	}
	return connectionID
}
