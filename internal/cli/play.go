package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/local"
	"quizroom-service/internal/view"
)

// NewPlayCmd runs an interactive terminal participant against the shared store.
func NewPlayCmd(configPath *string) *cobra.Command {
	var roomID, name, sessionPath string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a room and play from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !storeIsShared(cfg) {
				return fmt.Errorf("play needs store.backend redis or postgres")
			}
			if sessionPath == "" {
				if sessionPath, err = local.DefaultPath(); err != nil {
					return err
				}
			}
			deps, err := openDependencies(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			client := app.NewClient(deps.rooms, local.NewIdentityStore(sessionPath))
			return runPlay(cmd.Context(), client, roomID, name, cmd.InOrStdin(), cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room id")
	cmd.Flags().StringVar(&name, "name", "", "display name (ignored when resuming)")
	cmd.Flags().StringVar(&sessionPath, "session", "", "identity file (default in the user config dir)")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

// terminal tracks the latest view so typed option numbers answer the
// question currently on screen.
type terminal struct {
	mu   sync.Mutex
	out  io.Writer
	last view.View
}

func (t *terminal) show(v view.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = v
	renderView(t.out, v)
}

func (t *terminal) current() view.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func runPlay(ctx context.Context, client *app.Client, roomID, name string, in io.Reader, out io.Writer, log logrus.FieldLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	term := &terminal{out: out}

	identity, err := client.Join(ctx, roomID, name)
	if err != nil {
		return err
	}
	term.printf("Playing as %s (%s)\n", identity.PlayerName, identity.PlayerID)

	finished := make(chan struct{})
	var once sync.Once
	stop, err := client.Watch(ctx, roomID, func(v view.View) {
		term.show(v)
		if v.Status == domain.StatusCompleted {
			once.Do(func() { close(finished) })
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-finished:
				return nil
			case line, ok := <-lines:
				if !ok || line == "quit" || line == "q" {
					return nil
				}
				if err := playCommand(gctx, client, term, roomID, line); err != nil {
					if !app.IsRecoverable(err) {
						log.WithError(err).Warn("command failed")
					}
					term.printf("! %v\n", err)
				}
			}
		}
	})
	return g.Wait()
}

func playCommand(ctx context.Context, client *app.Client, term *terminal, roomID, line string) error {
	if line == "" {
		return nil
	}
	if line == "start" {
		_, err := client.Start(ctx, roomID)
		return err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return errors.New("type 'start', an option number or 'quit'")
	}
	v := term.current()
	if v.Round == nil {
		return domain.ErrRoomNotInProgress
	}
	outcome, err := client.Answer(ctx, roomID, v.Round.QuestionIndex, n-1)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		term.printf("already answered\n")
	}
	return nil
}
