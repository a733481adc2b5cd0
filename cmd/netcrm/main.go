package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"netcrm/internal"
	"netcrm/internal/companies"
	"netcrm/internal/config"
	"netcrm/internal/connectors"
	calendarconnector "netcrm/internal/connectors/calendar"
	"netcrm/internal/connectors/google"
	"netcrm/internal/listener"
	"netcrm/internal/logger"
	"netcrm/internal/pipeline"
	"netcrm/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = log.Sync() }()

	cmd := os.Args[1]
	switch cmd {
	case "gmail:auth-url":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		state := fs.String("state", "netcrm", "opaque state echoed back by Google")
		_ = fs.Parse(os.Args[2:])
		url, err := google.AuthURL(cfg, *state)
		must(err)
		fmt.Println(url)
		return
	case "gmail:exchange":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		code := fs.String("code", "", "authorization code")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*code) == "" {
			must(fmt.Errorf("--code is required"))
		}
		tok, err := google.Exchange(context.Background(), cfg, *code)
		must(err)
		fmt.Printf("GMAIL_REFRESH_TOKEN=%s\n", tok.RefreshToken)
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "import:csv", "import:xlsx", "import:html":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "path to the export")
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		tags := fs.String("tags", "", "comma-separated extra tags")
		progress := fs.Bool("progress", false, "print progress to stderr")
		asJSON := fs.Bool("json", false, "print the upload record as JSON")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		raw, err := os.ReadFile(*file)
		must(err)

		req := pipeline.ImportRequest{
			UserID:   *user,
			FileName: filepath.Base(*file),
			FileType: strings.TrimPrefix(cmd, "import:"),
			Raw:      raw,
			Tags:     splitList(*tags),
		}
		if *progress {
			req.Progress = func(message string, pct float64) {
				fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", pct, message)
			}
		}
		res, err := newImportService(db, cfg, log).ImportFile(ctx, req)
		if res.Upload.ID == "" {
			must(err)
		}
		if *asJSON {
			printJSON(res.Upload)
		} else {
			printUpload(res.Upload)
			for _, msg := range res.Upload.Diagnostics {
				fmt.Printf("  %s\n", msg)
			}
		}
		if res.Upload.Status == internal.UploadFailed {
			os.Exit(1)
		}
	case "contacts:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		company := fs.String("company", "", "company filter")
		search := fs.String("search", "", "name/email search")
		strength := fs.String("strength", "", "weak|medium|strong")
		limit := fs.Int("limit", 50, "max contacts")
		offset := fs.Int("offset", 0, "skip contacts")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		contacts, err := db.ListContacts(storage.ContactFilter{
			UserID:   *user,
			Company:  *company,
			Search:   *search,
			Strength: internal.RelationshipStrength(*strength),
			Limit:    *limit,
			Offset:   *offset,
		})
		must(err)
		if *asJSON {
			printJSON(contacts)
			return
		}
		for _, c := range contacts {
			printContact(c)
		}
		fmt.Printf("%d contacts\n", len(contacts))
	case "contacts:stats":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		days := fs.Int("days", 7, "window for recently added")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		stats, err := db.ContactStats(*user, time.Now().AddDate(0, 0, -*days))
		must(err)
		if *asJSON {
			printJSON(stats)
			return
		}
		fmt.Printf("total=%d withEmail=%d withCompany=%d recentlyAdded=%d\n", stats.Total, stats.WithEmail, stats.WithCompany, stats.RecentlyAdded)
		for _, s := range []internal.RelationshipStrength{internal.StrengthStrong, internal.StrengthMedium, internal.StrengthWeak} {
			fmt.Printf("  %s=%d\n", s, stats.ByStrength[s])
		}
	case "contacts:by-company":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		withTitle := fs.Bool("with-title", false, "only contacts with a title")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		groups, err := db.ContactsByCompany(*user, *withTitle)
		must(err)
		if *asJSON {
			printJSON(groups)
			return
		}
		for _, g := range groups {
			fmt.Printf("%s (%d)\n", g.Company, len(g.Contacts))
			for _, c := range g.Contacts {
				fmt.Print("  ")
				printContact(c)
			}
		}
	case "contacts:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		id := fs.String("id", "", "contact id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		deleted, err := db.DeleteContact(*user, *id)
		must(err)
		if !deleted {
			must(fmt.Errorf("contact not found: %s", *id))
		}
		fmt.Printf("deleted contact %s\n", *id)
	case "uploads:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		limit := fs.Int("limit", 20, "max uploads")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		uploads, err := db.ListUploads(*user, *limit)
		must(err)
		if *asJSON {
			printJSON(uploads)
			return
		}
		for _, u := range uploads {
			printUpload(u)
		}
	case "companies:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		name := fs.String("name", "", "company name")
		domains := fs.String("domains", "", "comma-separated domains; defaults to the known table")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--name is required"))
		}
		list := splitList(*domains)
		if len(list) == 0 {
			list = loadCompanyTable(cfg).DomainsFor(*name)
		}
		tc, err := db.UpsertTargetCompany(*user, *name, list)
		must(err)
		fmt.Printf("target company id=%d name=%s domains=%s\n", tc.ID, tc.Name, strings.Join(tc.Domains, ","))
	case "companies:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		targets, err := db.ListTargetCompanies(*user)
		must(err)
		if *asJSON {
			printJSON(targets)
			return
		}
		for _, tc := range targets {
			fmt.Printf("%d\t%s\t%s\n", tc.ID, tc.Name, strings.Join(tc.Domains, ","))
		}
	case "companies:contacts":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		name := fs.String("name", "", "target company; all targets when empty")
		asJSON := fs.Bool("json", false, "print JSON")
		_ = fs.Parse(os.Args[2:])
		targets, err := db.ListTargetCompanies(*user)
		must(err)
		contacts, err := db.ListContacts(storage.ContactFilter{UserID: *user})
		must(err)
		matcher := companies.NewMatcher(loadCompanyTable(cfg), cfg.CompanyFuzzyMin)

		groups := []internal.CompanyGroup{}
		for _, tc := range targets {
			if *name != "" && !strings.EqualFold(tc.Name, *name) {
				continue
			}
			groups = append(groups, internal.CompanyGroup{Company: tc.Name, Contacts: matcher.ContactsAt(tc, contacts)})
		}
		if *asJSON {
			printJSON(groups)
			return
		}
		for _, g := range groups {
			fmt.Printf("%s (%d)\n", g.Company, len(g.Contacts))
			for _, c := range g.Contacts {
				fmt.Print("  ")
				printContact(c)
			}
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		user := fs.String("user", cfg.DefaultUserID, "owner user id")
		company := fs.String("company", "", "company filter")
		out := fs.String("out", filepath.Join(cfg.OutputDir, "contacts.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		contacts, err := db.ListContacts(storage.ContactFilter{UserID: *user, Company: *company})
		must(err)
		if len(contacts) == 0 {
			must(fmt.Errorf("no contacts for user=%s", *user))
		}
		must(pipeline.ExportContactsToXLSX(contacts, *out))
		fmt.Printf("exported %d contacts to %s\n", len(contacts), *out)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.NewMailConnector(ctx, cfg, strings.ToLower(strings.TrimSpace(*provider)))
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewMailProcessor(db, cfg, log, newImportService(db, cfg, log))
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d interactions=%d imported=%d\n", res.EmailID, res.Interactions, res.Imported)
			return
		}
		processedEmails, touched, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d contacts=%d\n", processedEmails, touched)
	case "mail:listen":
		s := listener.NewService(db, cfg, log, newImportService(db, cfg, log))
		must(s.Run(ctx))
	case "calendar:sync":
		events, err := calendarconnector.NewConnector(ctx, cfg)
		must(err)
		res, err := pipeline.NewCalendarSync(db, cfg, log, events).Sync(ctx)
		must(err)
		fmt.Printf("calendar sync done from=%s to=%s events=%d interactions=%d\n",
			res.From.Format(time.RFC3339), res.To.Format(time.RFC3339), res.Events, res.Interactions)
	default:
		usage()
		os.Exit(1)
	}
}

func newImportService(db *storage.DB, cfg config.Config, log *zap.Logger) *pipeline.ImportService {
	fields, err := pipeline.LoadFieldNormalizer(cfg.FieldAliasesPath)
	must(err)
	return pipeline.NewImportService(db, cfg, log, fields)
}

func loadCompanyTable(cfg config.Config) *companies.Table {
	table, err := companies.LoadTable(cfg.CompanyDomainsPath)
	must(err)
	return table
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func usage() {
	fmt.Println("usage: netcrm <command>")
	fmt.Println("commands:")
	fmt.Println("  import:csv|import:xlsx|import:html --file=... [--user=...] [--tags=a,b] [--progress] [--json]")
	fmt.Println("  contacts:list [--company=...] [--search=...] [--strength=weak|medium|strong] [--limit=50] [--json]")
	fmt.Println("  contacts:stats [--days=7] [--json]")
	fmt.Println("  contacts:by-company [--with-title] [--json]")
	fmt.Println("  contacts:delete --id=...")
	fmt.Println("  uploads:list [--limit=20] [--json]")
	fmt.Println("  companies:add --name=... [--domains=a.com,b.com]")
	fmt.Println("  companies:list [--json]")
	fmt.Println("  companies:contacts [--name=...] [--json]")
	fmt.Println("  export:xlsx [--company=...] --out=./out/contacts.xlsx")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  calendar:sync")
	fmt.Println("  gmail:auth-url [--state=...]")
	fmt.Println("  gmail:exchange --code=...")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
