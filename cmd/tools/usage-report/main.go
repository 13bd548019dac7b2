// cmd/tools/usage-report/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"wifidog-auth/internal/bootstrap"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/wifidog/bandwidth"
)

const dayLayout = "2006-01-02"

type report struct {
	name       string
	configPath string
	limit      int
	days       int
	userID     string
	gatewayID  string
	from       time.Time
	to         time.Time
}

type usageReports interface {
	GetUserBandwidth(ctx context.Context, userID string, start, end time.Time) ([]models.DailyBandwidth, error)
	GetTopUsers(ctx context.Context, limit, days int, now time.Time) ([]models.UserBandwidth, error)
	GetGatewayBandwidth(ctx context.Context, gatewayID string, days int, now time.Time) ([]models.DailyBandwidth, error)
}

type gatewayLister interface {
	List(ctx context.Context, now time.Time, timeout time.Duration) ([]*models.Gateway, error)
}

type sessionReports interface {
	ActiveSessions(ctx context.Context, limit int) ([]*models.Session, error)
	UserSessions(ctx context.Context, userID string, limit int) ([]*models.Session, error)
	Statistics(ctx context.Context) (*models.SessionStatistics, error)
}

type reporter struct {
	usage    usageReports
	gateways gatewayLister
	sessions sessionReports
	now      time.Time
}

func main() {
	rep, err := parseReport(os.Args[1:])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		help()
		os.Exit(1)
	}
	if rep.name == "help" {
		help()
		return
	}

	var cfg *config.Config
	if rep.configPath != "" {
		cfg, err = config.LoadFromFile(rep.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console", "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.Retry{MaxAttempts: 3, InitialDelay: time.Second}, zapLog)
	if err != nil {
		zapLog.Fatal("storage unavailable", zap.Error(err))
	}
	defer store.Close()

	clk := clock.New()
	components, err := bootstrap.NewComponents(cfg, store, nil, clk, log)
	if err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}
	r := &reporter{
		usage:    components.Bandwidth,
		gateways: components.Gateways,
		sessions: components.Sessions,
		now:      clk.Now(),
	}
	if err := r.run(ctx, rep, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func parseReport(args []string) (*report, error) {
	if len(args) < 1 {
		return nil, errors.New("missing report")
	}
	rep := &report{name: args[0]}
	if rep.name == "help" {
		return rep, nil
	}

	var from, to string
	fs := flag.NewFlagSet(rep.name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&rep.configPath, "config", "", "Path to config file")
	fs.IntVar(&rep.limit, "limit", 10, "Maximum rows")
	fs.IntVar(&rep.days, "days", 7, "Window in days, including today")
	fs.StringVar(&rep.userID, "user", "", "User ID")
	fs.StringVar(&rep.gatewayID, "gateway", "", "Gateway ID")
	fs.StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	fs.StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	switch rep.name {
	case "top", "gateways", "sessions", "stats":
	case "gateway":
		if rep.gatewayID == "" {
			return nil, errors.New("gateway requires -gateway")
		}
	case "user":
		if rep.userID == "" || from == "" || to == "" {
			return nil, errors.New("user requires -user, -from and -to")
		}
		var err error
		if rep.from, err = time.Parse(dayLayout, from); err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
		if rep.to, err = time.Parse(dayLayout, to); err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown report %q", rep.name)
	}
	return rep, nil
}

func (r *reporter) run(ctx context.Context, rep *report, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch rep.name {
	case "top":
		rows, err := r.usage.GetTopUsers(ctx, rep.limit, rep.days, r.now)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "USER\tINCOMING\tOUTGOING\tTOTAL")
		for _, row := range rows {
			name := row.Username
			if name == "" {
				name = row.UserID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name,
				bandwidth.FormatBytes(row.IncomingBytes),
				bandwidth.FormatBytes(row.OutgoingBytes),
				bandwidth.FormatBytes(row.TotalBytes))
		}

	case "user":
		days, err := r.usage.GetUserBandwidth(ctx, rep.userID, rep.from, rep.to)
		if err != nil {
			return err
		}
		writeDaily(w, days)

	case "gateway":
		days, err := r.usage.GetGatewayBandwidth(ctx, rep.gatewayID, rep.days, r.now)
		if err != nil {
			return err
		}
		writeDaily(w, days)

	case "gateways":
		gws, err := r.gateways.List(ctx, r.now, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "GATEWAY\tSTATUS\tLAST PING\tUPTIME")
		for _, g := range gws {
			status := "offline"
			if g.IsOnline {
				status = "online"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.GatewayID, status,
				g.LastPing.UTC().Format(time.RFC3339), time.Duration(g.SysUptime)*time.Second)
		}

	case "sessions":
		var sessions []*models.Session
		var err error
		if rep.userID != "" {
			sessions, err = r.sessions.UserSessions(ctx, rep.userID, rep.limit)
		} else {
			sessions, err = r.sessions.ActiveSessions(ctx, rep.limit)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SESSION\tUSER\tMAC\tGATEWAY\tACTIVE\tDURATION\tTRAFFIC")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n", s.ID, s.UserID, s.MACAddress, s.GatewayID,
				s.IsActive, s.Duration(r.now).Truncate(time.Second), bandwidth.FormatBytes(s.TotalBytes()))
		}

	case "stats":
		st, err := r.sessions.Statistics(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Total sessions:\t%d\n", st.TotalSessions)
		fmt.Fprintf(w, "Active sessions:\t%d\n", st.ActiveSessions)
		fmt.Fprintf(w, "Incoming:\t%s\n", bandwidth.FormatBytes(st.TotalIncomingBytes))
		fmt.Fprintf(w, "Outgoing:\t%s\n", bandwidth.FormatBytes(st.TotalOutgoingBytes))
		fmt.Fprintf(w, "Average duration:\t%s\n", st.AverageDuration.Truncate(time.Second))

	default:
		return fmt.Errorf("unknown report %q", rep.name)
	}
	return nil
}

func writeDaily(w io.Writer, days []models.DailyBandwidth) {
	fmt.Fprintln(w, "DAY\tINCOMING\tOUTGOING\tTOTAL")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Day.Format(dayLayout),
			bandwidth.FormatBytes(d.IncomingBytes),
			bandwidth.FormatBytes(d.OutgoingBytes),
			bandwidth.FormatBytes(d.TotalBytes))
	}
}

func help() {
	fmt.Println("Usage Report Tool")
	fmt.Println("Usage:")
	fmt.Println("  usage-report top [-limit 10] [-days 7]")
	fmt.Println("  usage-report user -user <id> -from YYYY-MM-DD -to YYYY-MM-DD")
	fmt.Println("  usage-report gateway -gateway <id> [-days 7]")
	fmt.Println("  usage-report gateways")
	fmt.Println("  usage-report sessions [-user <id>] [-limit 10]")
	fmt.Println("  usage-report stats")
	fmt.Println("All reports accept -config <path>.")
}
