// tradedesk is the terminal dashboard client: it syncs the live price feed,
// reconciles the portfolio against it, and takes trade/watchlist/chat
// commands on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradedesk/internal/config"
	"tradedesk/internal/dashboard"
	"tradedesk/internal/domain"
	"tradedesk/internal/session"
	"tradedesk/internal/util"
)

const (
	redrawInterval = time.Second
	sparkWidth     = 20
	chatTailLen    = 6
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	sess := session.New(cfg, logger)
	sess.Start()
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Commands arrive on stdin, one per line. The reader goroutine exits
	// with the process; there is no portable way to unblock a stdin read.
	commands := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			commands <- scanner.Text()
		}
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	draw(sess)
	lastRevision := sess.History.Revision()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nshutdown")
			return
		case <-ticker.C:
			// Skip the redraw when no new market data arrived.
			if rev := sess.History.Revision(); rev != lastRevision {
				draw(sess)
				lastRevision = rev
			}
		case line := <-commands:
			if quit := handleCommand(ctx, sess, line); quit {
				return
			}
			draw(sess)
			lastRevision = sess.History.Revision()
		}
	}
}

// handleCommand runs one stdin command. Reports true on quit.
func handleCommand(ctx context.Context, sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmdCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true
	case "buy", "sell":
		if len(fields) != 3 {
			return false
		}
		sess.Trades.Submit(cmdCtx, fields[1], fields[2], domain.Side(strings.ToLower(fields[0])))
	case "watch":
		if len(fields) != 2 {
			return false
		}
		sess.Watchlist.Add(cmdCtx, fields[1])
	case "unwatch":
		if len(fields) != 2 {
			return false
		}
		sess.Watchlist.Remove(cmdCtx, fields[1])
	case "chat":
		if len(fields) < 2 {
			return false
		}
		sess.Chat.Send(cmdCtx, strings.Join(fields[1:], " "))
	case "refresh":
		sess.Refresh()
	}
	return false
}

// draw assembles a frame from session state and renders it.
func draw(sess *session.Session) {
	var rows []dashboard.WatchRow
	for _, sym := range sess.Watchlist.Symbols() {
		row := dashboard.WatchRow{
			Symbol: sym,
			Spark:  dashboard.Sparkline(sess.History.HistoryFor(sym), sparkWidth),
		}
		if q, ok := sess.Quotes.Get(sym); ok {
			row.Quote = q
			row.Live = true
		}
		rows = append(rows, row)
	}

	views, total, cash := sess.Portfolio()

	msgs := sess.Chat.Messages()
	if len(msgs) > chatTailLen {
		msgs = msgs[len(msgs)-chatTailLen:]
	}

	dashboard.Render(os.Stdout, dashboard.Frame{
		Now:         time.Now(),
		Status:      sess.Status(),
		Watchlist:   rows,
		Positions:   views,
		CashBalance: cash,
		TotalValue:  total,
		TradeStatus: sess.Trades.Status(),
		TradeErr:    sess.Trades.Err(),
		ChatTail:    msgs,
	})
}
