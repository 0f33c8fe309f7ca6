// khaki-maint runs the operator tasks against a khakishop installation:
// diagnostics, batch image placement and the performance monitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/khakishop/server/config"
	"github.com/khakishop/server/database"
	"github.com/khakishop/server/maintenance"
	"github.com/khakishop/server/pkg/adminclient"
	"github.com/khakishop/server/pkg/email"
	"github.com/khakishop/server/pkg/i18n"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/services"
)

const banner = `
 _    _           _    _                      _       _
| | _| |__   __ _| | _(_)      _ __ ___   __ _(_)_ __ | |_
| |/ / '_ \ / _' | |/ / |_____| '_ ' _ \ / _' | | '_ \| __|
|   <| | | | (_| |   <| |_____| | | | | | (_| | | | | | |_
|_|\_\_| |_|\__,_|_|\_\_|     |_| |_| |_|\__,_|_|_| |_|\__|
`

// errChecksFailed makes the process exit 1 after a report was printed.
var errChecksFailed = errors.New("one or more checks failed")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "diagnose":
		err = cmdDiagnose(ctx, args)
	case "place":
		err = cmdPlace(ctx, args)
	case "perf":
		err = cmdPerf(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, errChecksFailed) {
		stop()
		os.Exit(1)
	}
	if err != nil {
		color.Red("Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: khaki-maint <command> [flags]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  diagnose                Check database, storage, image consistency and run build/audit commands")
	fmt.Println("  place                   Place a batch of images described by a YAML manifest")
	fmt.Println("  perf                    Measure response times of storefront endpoints")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  DATABASE_PATH            SQLite file (default: ./data/khakishop.db)")
	fmt.Println("  UPLOAD_DIR               Local storage dir (default: ./data/uploads)")
	fmt.Println("  STORAGE_DRIVER           local or minio")
	fmt.Println("  ADMIN_USERNAME           Admin login for place --mode api")
	fmt.Println("  ADMIN_PASSWORD")
	fmt.Println("  RESEND_API_KEY           Enables diagnose --alert")
	fmt.Println("  RESEND_FROM, ALERT_EMAIL")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  khaki-maint diagnose --alert")
	fmt.Println("  khaki-maint diagnose --cmd 'test=go test ./...'")
	fmt.Println("  khaki-maint place --manifest incoming/manifest.yaml")
	fmt.Println("  khaki-maint place --manifest incoming/manifest.yaml --mode api --server https://khakishop.kr")
	fmt.Println("  khaki-maint perf --url https://khakishop.kr/api/health --samples 20 --budget 300ms")
	fmt.Println()
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ", ") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

// ─── diagnose ───

func cmdDiagnose(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnose", flag.ExitOnError)
	reports := fs.String("reports", "reports", "Directory for the JSON report")
	alert := fs.Bool("alert", false, "Mail failed checks to ALERT_EMAIL")
	noCommands := fs.Bool("no-commands", false, "Skip the build and audit commands")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout per command")
	lang := fs.String("lang", "", "Alert language (ko or en)")
	var commands listFlag
	fs.Var(&commands, "cmd", "Command to run as name=program args (repeatable, replaces the defaults)")
	fs.Parse(args)

	cfg, err := config.LoadMaintenance()
	if err != nil {
		return err
	}

	opts := maintenance.DiagnoseOptions{
		UploadDir:      cfg.Upload.Dir,
		CommandTimeout: *timeout,
		OnCheck:        printCheck,
	}

	switch {
	case *noCommands:
	case len(commands) > 0:
		for _, spec := range commands {
			c, err := maintenance.ParseCommand(spec)
			if err != nil {
				return err
			}
			opts.Commands = append(opts.Commands, c)
		}
	default:
		opts.Commands = maintenance.DefaultCommands()
	}

	// A broken database or store is a finding, not a reason to stop.
	if db, err := database.Open(cfg.Database.Path); err != nil {
		color.Yellow("  database unavailable: %v\n", err)
	} else {
		defer db.Close()
		opts.DB = db
		opts.Images = repository.NewSQLiteImageRepo(db.Conn)
	}
	if store, err := storage.New(ctx, cfg.Storage, cfg.Upload.Dir); err != nil {
		color.Yellow("  storage unavailable: %v\n", err)
	} else {
		opts.Store = store
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Diagnostics")
	cyan.Println("  -----------")

	report := maintenance.Diagnose(ctx, opts)

	path, err := maintenance.WriteReport(*reports, "diagnostics", report.StartedAt, report)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("  %d failed, %d warning(s). Report: %s\n", report.Failed, report.Warnings, path)

	for _, c := range report.Checks {
		if c.Status == maintenance.StatusFail && c.Output != "" {
			fmt.Println()
			color.New(color.FgRed).Printf("  %s output:\n", c.Name)
			for _, line := range strings.Split(c.Output, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}

	if *alert && report.Failed > 0 {
		if err := sendAlert(ctx, cfg, report, path, *lang); err != nil {
			color.Red("  alert not sent: %v\n", err)
		}
	}
	fmt.Println()

	if report.Failed > 0 {
		return errChecksFailed
	}
	return nil
}

func printCheck(c maintenance.CheckResult) {
	var status string
	switch c.Status {
	case maintenance.StatusPass:
		status = color.GreenString("PASS")
	case maintenance.StatusWarn:
		status = color.YellowString("WARN")
	default:
		status = color.RedString("FAIL")
	}
	fmt.Printf("  %s  %-16s %8.1fms  %s\n", status, c.Name, float64(c.Duration.Duration().Microseconds())/1000, c.Detail)
}

func sendAlert(ctx context.Context, cfg *config.Config, report *maintenance.DiagnosticsReport, path, lang string) error {
	if !cfg.Email.Enabled() {
		return errors.New("RESEND_API_KEY, RESEND_FROM and ALERT_EMAIL must be set")
	}
	if err := i18n.LoadEmbedded(); err != nil {
		return err
	}
	if lang == "" {
		lang = cfg.Language
	}

	sender := email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail)
	sent, err := maintenance.SendDiagnosticsAlert(ctx, sender, cfg.Email.AlertEmail, report, path, lang)
	if err != nil {
		return err
	}
	if sent {
		color.Green("  alert sent to %s\n", cfg.Email.AlertEmail)
	}
	return nil
}

// ─── place ───

func cmdPlace(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("place", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "YAML manifest (required)")
	mode := fs.String("mode", "copy", "copy: write to the local database and store; api: upload through a running server")
	server := fs.String("server", "", "Server URL for --mode api (default: http://localhost:SERVER_PORT)")
	username := fs.String("username", "", "Admin username (default: ADMIN_USERNAME)")
	password := fs.String("password", "", "Admin password (default: ADMIN_PASSWORD)")
	reports := fs.String("reports", "reports", "Directory for the JSON report")
	dryRun := fs.Bool("dry-run", false, "Print the plan without placing anything")
	fs.Parse(args)

	if *manifestPath == "" {
		return errors.New("--manifest is required")
	}

	cfg, err := config.LoadMaintenance()
	if err != nil {
		return err
	}
	manifest, err := maintenance.LoadManifest(*manifestPath)
	if err != nil {
		return err
	}

	if *dryRun {
		files, rejected := manifest.Plan()
		printPlan(files, rejected)
		return nil
	}

	var placer maintenance.Placer
	switch *mode {
	case "copy":
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		store, err := storage.New(ctx, cfg.Storage, cfg.Upload.Dir)
		if err != nil {
			return err
		}
		images := repository.NewSQLiteImageRepo(db.Conn)
		placer = &maintenance.ServicePlacer{
			Uploads: services.NewUploadService(images, store, services.NewOrderAllocator(images),
				maintenance.NopPublisher{}, cfg.Upload.MaxSize, cfg.Upload.MaxFiles),
		}
	case "api":
		uploader, err := apiUploader(ctx, cfg, *server, *username, *password)
		if err != nil {
			return err
		}
		placer = &maintenance.APIPlacer{Uploader: uploader}
	default:
		return fmt.Errorf("unknown mode %q, want copy or api", *mode)
	}

	report := maintenance.PlaceBatch(ctx, manifest, placer)

	path, err := maintenance.WriteReport(*reports, "placement", report.StartedAt, report)
	if err != nil {
		return err
	}
	printPlacement(report, path)

	if report.Failed > 0 {
		return errChecksFailed
	}
	return nil
}

func apiUploader(ctx context.Context, cfg *config.Config, server, username, password string) (*adminclient.Uploader, error) {
	if server == "" {
		server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if username == "" {
		username = cfg.Admin.Username
	}
	if password == "" {
		password = cfg.Admin.Password
	}
	if username == "" || password == "" {
		return nil, errors.New("admin credentials are required: --username/--password or ADMIN_USERNAME/ADMIN_PASSWORD")
	}

	client := adminclient.New(server)
	if err := client.Login(ctx, username, password); err != nil {
		return nil, fmt.Errorf("login to %s: %w", server, err)
	}

	uploader := adminclient.NewUploader(client)
	uploader.MaxFiles = cfg.Upload.MaxFiles
	uploader.MaxSize = cfg.Upload.MaxSize
	uploader.OnProgress = func(_ int, name string, percent int) {
		if percent == 100 {
			fmt.Printf("  uploaded %s\n", name)
		}
	}
	return uploader, nil
}

func printPlan(files []maintenance.PlannedFile, rejected []maintenance.PlacementResult) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Placement plan")
	cyan.Println("  --------------")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FILE\tCATEGORY\tSUBCATEGORY\tTAGS")
	fmt.Fprintln(w, "  ----\t--------\t-----------\t----")
	for _, f := range files {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", f.Path, f.Fields.Category, orDash(f.Fields.Subcategory), strings.Join(f.Fields.Tags, ","))
	}
	w.Flush()

	for _, r := range rejected {
		color.Red("  ✗ %s: %s\n", r.File, r.Error)
	}
	fmt.Printf("\n  %d file(s) planned, %d rejected\n\n", len(files), len(rejected))
}

func printPlacement(report *maintenance.PlacementReport, path string) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Placement (%s mode)\n", report.Mode)
	cyan.Println("  ---------")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FILE\tBUCKET\tRESULT")
	fmt.Fprintln(w, "  ----\t------\t------")
	for _, r := range report.Results {
		bucket := r.Category
		if r.Subcategory != "" {
			bucket += "/" + r.Subcategory
		}
		result := color.GreenString(r.ImageID)
		if !r.OK() {
			result = color.RedString(r.Error)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", r.File, bucket, result)
	}
	w.Flush()

	fmt.Printf("\n  %d placed, %d failed. Report: %s\n\n", report.Placed, report.Failed, path)
}

// ─── perf ───

func cmdPerf(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("perf", flag.ExitOnError)
	var urls listFlag
	fs.Var(&urls, "url", "URL to measure (repeatable; default: local health and categories)")
	samples := fs.Int("samples", 10, "Requests per URL")
	timeout := fs.Duration("timeout", 10*time.Second, "Timeout per request")
	budget := fs.Duration("budget", 0, "Fail when an endpoint's p95 exceeds this (0 disables)")
	reports := fs.String("reports", "reports", "Directory for the JSON report")
	fs.Parse(args)

	if len(urls) == 0 {
		cfg, err := config.LoadMaintenance()
		if err != nil {
			return err
		}
		base := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		urls = listFlag{base + "/api/health", base + "/api/categories"}
	}

	report, err := maintenance.MonitorPerformance(ctx, maintenance.PerfOptions{
		URLs:      urls,
		Samples:   *samples,
		Timeout:   *timeout,
		BudgetP95: *budget,
	})
	if err != nil {
		return err
	}

	path, err := maintenance.WriteReport(*reports, "performance", report.StartedAt, report)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Performance")
	cyan.Println("  -----------")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  URL\tOK\tERR\tP50\tP95\tMAX\t")
	fmt.Fprintln(w, "  ---\t--\t---\t---\t---\t---\t")
	for _, ep := range report.Endpoints {
		ok := 0
		for code, n := range ep.Statuses {
			if code < "400" {
				ok += n
			}
		}
		mark := ""
		switch {
		case !ep.Healthy():
			mark = color.RedString("unhealthy")
		case ep.OverBudget:
			mark = color.YellowString("over budget")
		}
		fmt.Fprintf(w, "  %s\t%d/%d\t%d\t%s\t%s\t%s\t%s\n", ep.URL, ok, ep.Samples, len(ep.Errors),
			ms(ep.Latency.P50), ms(ep.Latency.P95), ms(ep.Latency.Max), mark)
	}
	w.Flush()
	fmt.Printf("\n  Report: %s\n\n", path)

	if !report.Passed() {
		return errChecksFailed
	}
	return nil
}

func ms(m maintenance.Millis) string {
	return fmt.Sprintf("%.1fms", float64(m.Duration().Microseconds())/1000)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
