package telegram

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/application"
)

// NoopBotAdapter reads lines from stdin and prints replies, for local runs
// without a Telegram token. The whole stdin session is one thread.
type NoopBotAdapter struct {
	facade   *application.AgentFacade
	threadID string
	log      *zerolog.Logger
}

func NewNoopBotAdapter(facade *application.AgentFacade, logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "noop-bot").Logger()
	return &NoopBotAdapter{facade: facade, threadID: "local", log: &l}
}

func (n *NoopBotAdapter) StartPolling(ctx context.Context) error {
	fmt.Println("dev console: type a message, ctrl-d to quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply, err := n.facade.HandleMessage(ctx, n.threadID, line)
		if err != nil {
			n.log.Error().Err(err).Msg("handle message failed")
			continue
		}
		fmt.Println(reply)
	}
	return sc.Err()
}

func (n *NoopBotAdapter) StopPolling() {}
