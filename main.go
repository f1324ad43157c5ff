// i18nlens: resolve, inspect and edit translation keys in .properties and
// YAML message bundles.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/minios-linux/i18nlens/config"
	"github.com/minios-linux/i18nlens/engine"
	"github.com/minios-linux/i18nlens/i18n"
	"github.com/minios-linux/i18nlens/keymatch"
	"github.com/minios-linux/i18nlens/langmeta"
	"github.com/minios-linux/i18nlens/logging"
	"github.com/minios-linux/i18nlens/prompt"
	"github.com/minios-linux/i18nlens/watch"
	"github.com/minios-linux/i18nlens/writeback"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleKey     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleHeader  = lipgloss.NewStyle().Bold(true)
	styleDim     = lipgloss.NewStyle().Faint(true)
	styleMissing = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Italic(true)
)

func logSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleOK.Render("[OK]")+" "+fmt.Sprintf(format, args...))
}

func logWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleWarn.Render("[WARN]")+" "+fmt.Sprintf(format, args...))
}

func logError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleErr.Render("[ERROR]")+" "+fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	cfgFile string
	noInput bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "i18nlens",
		Short: i18n.T("Resolve and edit i18n keys in .properties and YAML bundles"),
		Long: i18n.T(`i18nlens finds translation files in a project (messages*.properties,
messages*.yml and the bundles named by spring.messages.basename), merges
them per locale and resolves keys against them.

Commands:
  keys      List every known key
  get       Resolve a key
  set       Write a translation
  delete    Remove a key from every locale
  scan      Find keys in source files and resolve them
  locales   Show the locales found in the project
  watch     Reload whenever translation files change`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rootDir, "root", ".", i18n.T("Project root directory"))
	pf.StringVar(&cfgFile, "config", "", i18n.T("Config file (default <root>/.i18nlens.yaml)"))
	pf.String("locale", "", i18n.T("Locale to display and write (default: first configured locale)"))
	pf.String("key-regex", "", i18n.T("Regular expression that finds keys in source text"))
	pf.String("resource-root", "", i18n.T("Resource directory relative to the project root"))
	pf.String("log-level", "", i18n.T("Log level: debug, info, warn, error"))
	pf.String("log-format", "", i18n.T("Log format: text, json, logfmt"))
	pf.String("log-file", "", i18n.T("Also write logs to this file (rotated)"))
	pf.BoolVar(&noInput, "no-input", false, i18n.T("Never prompt; declines file creation"))

	root.AddCommand(
		newKeysCmd(),
		newGetCmd(),
		newSetCmd(),
		newDeleteCmd(),
		newScanCmd(),
		newLocalesCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// app is the per-invocation state shared by commands.
type app struct {
	root    string
	cfg     *config.Config
	log     *log.Logger
	closer  io.Closer
	prompt  writeback.Prompter
	engine  *engine.Engine
	matcher *keymatch.Matcher
}

// newApp loads configuration, sets up logging and builds a loaded engine.
func newApp(cmd *cobra.Command) (*app, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving --root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.New(i18n.Tf("project root %s is not a directory", root))
	}

	cfg, err := config.Load(root, cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}

	var p writeback.Prompter
	if !noInput && isTerminal(os.Stdin) {
		p = &prompt.Huh{}
	}

	eng, err := engine.New(engine.Options{
		Root:           root,
		ResourceRoot:   cfg.ResourceRoot,
		DiscoveryOrder: cfg.DiscoveryOrder,
		SkipDirs:       cfg.SkipDirs,
		Fallback:       cfg.FallbackChain(),
		Prompter:       p,
		Logger:         logger,
	})
	if err != nil {
		closer.Close()
		return nil, err
	}
	if err := eng.Reload(cmd.Context()); err != nil {
		closer.Close()
		return nil, err
	}

	return &app{
		root:    root,
		cfg:     cfg,
		log:     logger,
		closer:  closer,
		prompt:  p,
		engine:  eng,
		matcher: keymatch.New(cfg.KeyRegex, logger),
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

// rel shortens a path to project-relative form for display.
func (a *app) rel(path string) string {
	if r, err := filepath.Rel(a.root, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return path
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "i18nlens version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// keys
// ---------------------------------------------------------------------------

func newKeysCmd() *cobra.Command {
	var tree, values bool

	cmd := &cobra.Command{
		Use:   "keys",
		Short: i18n.T("List every key defined in at least one locale"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			keys := a.engine.AllKeys()
			out := cmd.OutOrStdout()

			line := func(indent, label, key string) {
				if !values {
					fmt.Fprintln(out, indent+label)
					return
				}
				fmt.Fprintln(out, indent+styleKey.Render(label)+" = "+a.renderValue(key))
			}

			if tree {
				for _, g := range groupKeys(keys) {
					header := g.Path
					if header == "" {
						header = i18n.T("(top level)")
					}
					fmt.Fprintln(out, styleHeader.Render(header))
					for _, leaf := range g.Leaves {
						key := leaf
						if g.Path != "" {
							key = g.Path + "." + leaf
						}
						line("  ", leaf, key)
					}
				}
			} else {
				for _, k := range keys {
					line("", k, k)
				}
			}

			fmt.Fprintln(cmd.ErrOrStderr(), styleDim.Render(i18n.N("%d key", "%d keys", len(keys))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&tree, "tree", false, i18n.T("Group keys by their parent path"))
	cmd.Flags().BoolVar(&values, "values", false, i18n.T("Show the resolved value of each key"))
	return cmd
}

// renderValue resolves key along the fallback chain for display.
func (a *app) renderValue(key string) string {
	v, locale, ok := a.engine.Resolve(key)
	if !ok {
		return styleMissing.Render(i18n.T("(missing)"))
	}
	if locale != a.cfg.DisplayLocale() {
		return v + " " + styleDim.Render("["+locale+"]")
	}
	return v
}

// keyGroup is the set of leaves sharing one parent path.
type keyGroup struct {
	Path   string
	Leaves []string
}

// groupKeys groups sorted keys by GroupPath, keeping first-seen group order.
func groupKeys(keys []string) []keyGroup {
	var groups []keyGroup
	index := make(map[string]int)
	for _, k := range keys {
		path := engine.GroupPath(k)
		leaf := k
		if path != "" {
			leaf = k[len(path)+1:]
		}
		i, ok := index[path]
		if !ok {
			i = len(groups)
			index[path] = i
			groups = append(groups, keyGroup{Path: path})
		}
		groups[i].Leaves = append(groups[i].Leaves, leaf)
	}
	return groups
}

// ---------------------------------------------------------------------------
// get
// ---------------------------------------------------------------------------

func newGetCmd() *cobra.Command {
	var all, source bool

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: i18n.T("Resolve a key in the display locale, falling back through the configured locales"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if all {
				locales := a.engine.Locales()
				width := 0
				for _, l := range locales {
					width = max(width, lipgloss.Width(l))
				}
				found := false
				for _, l := range locales {
					label := styleHeader.Render(fmt.Sprintf("%-*s", width, l))
					v, ok := a.engine.Translation(key, l)
					if !ok {
						fmt.Fprintf(out, "%s  %s\n", label, styleMissing.Render(i18n.T("(missing)")))
						continue
					}
					found = true
					src, _ := a.engine.SourceFile(key, l)
					fmt.Fprintf(out, "%s  %s  %s\n", label, v, styleDim.Render(a.rel(src)))
				}
				if !found {
					return fmt.Errorf("%w: %q", engine.ErrKeyNotFound, key)
				}
				return nil
			}

			v, locale, ok := a.engine.Resolve(key, a.cfg.FallbackChain()...)
			if !ok {
				return fmt.Errorf("%w: %q", engine.ErrKeyNotFound, key)
			}
			fmt.Fprintln(out, v)
			if source {
				src, _ := a.engine.SourceFile(key, locale)
				fmt.Fprintln(out, styleDim.Render(fmt.Sprintf("%s (%s)", a.rel(src), locale)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, i18n.T("Show the key in every locale"))
	cmd.Flags().BoolVar(&source, "source", false, i18n.T("Also print the file the value came from"))
	return cmd
}

// ---------------------------------------------------------------------------
// set
// ---------------------------------------------------------------------------

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: i18n.T("Write a translation for the display locale (--locale)"),
		Long: i18n.T(`Write a translation for the display locale.

The value goes into the file that already defines the key. A new key is
added to the locale's first file. For a locale without any file you are
asked whether to create one.`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			locale := a.cfg.DisplayLocale()
			if err := a.engine.WriteTranslation(cmd.Context(), key, locale, value); err != nil {
				return err
			}

			src, ok := a.engine.SourceFile(key, locale)
			if !ok {
				if _, exists := a.engine.Snapshot().Store(locale); exists && value == "" {
					// Empty values are written but never resolve.
					logSuccess(cmd.ErrOrStderr(), "%s", i18n.Tf("%s written with an empty value", styleKey.Render(key)))
					return nil
				}
				logWarning(cmd.ErrOrStderr(), "%s", i18n.Tf("%s was not written: no translation file for locale %s", key, locale))
				return nil
			}
			logSuccess(cmd.ErrOrStderr(), "%s = %s  %s", styleKey.Render(key), value, styleDim.Render(a.rel(src)))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// delete
// ---------------------------------------------------------------------------

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete KEY",
		Short: i18n.T("Remove a key from every locale"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var owners []string
			for _, l := range a.engine.Locales() {
				if src, ok := a.engine.SourceFile(key, l); ok {
					owners = append(owners, a.rel(src))
				}
			}
			if len(owners) == 0 {
				return fmt.Errorf("%w: %q", engine.ErrKeyNotFound, key)
			}

			if !force {
				if a.prompt == nil {
					return errors.New(i18n.T("refusing to delete without a terminal; pass --force"))
				}
				ok, err := a.prompt.Confirm(cmd.Context(),
					i18n.Tf("Delete %s?", key),
					strings.Join(owners, "\n"))
				if err != nil {
					return err
				}
				if !ok {
					logWarning(cmd.ErrOrStderr(), "%s", i18n.T("Nothing deleted."))
					return nil
				}
			}

			if err := a.engine.DeleteKey(cmd.Context(), key); err != nil {
				return err
			}
			logSuccess(cmd.ErrOrStderr(), "%s", i18n.N("Deleted from %d file", "Deleted from %d files", len(owners)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, i18n.T("Do not ask for confirmation"))
	return cmd
}

// ---------------------------------------------------------------------------
// scan
// ---------------------------------------------------------------------------

func newScanCmd() *cobra.Command {
	var missingOnly, strict bool

	cmd := &cobra.Command{
		Use:   "scan FILE...",
		Short: i18n.T("Find keys in source files and show their translations"),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			total, missing := 0, 0
			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading %s: %w", file, err)
				}
				text := string(data)
				for m := range a.matcher.Matches(text) {
					total++
					line, col := position(text, m.Start)
					v, locale, ok := a.engine.Resolve(m.Key)
					if !ok {
						missing++
					} else if missingOnly {
						continue
					}

					where := styleDim.Render(fmt.Sprintf("%s:%d:%d", file, line, col))
					switch {
					case !ok:
						fmt.Fprintf(out, "%s  %s  %s\n", where, styleKey.Render(m.Key), styleMissing.Render(i18n.T("(missing)")))
					case locale != a.cfg.DisplayLocale():
						fmt.Fprintf(out, "%s  %s  %s %s\n", where, styleKey.Render(m.Key), v, styleDim.Render("["+locale+"]"))
					default:
						fmt.Fprintf(out, "%s  %s  %s\n", where, styleKey.Render(m.Key), v)
					}
				}
			}

			fmt.Fprintln(cmd.ErrOrStderr(), styleDim.Render(
				i18n.Tf("%d keys found, %d unresolved", total, missing)))
			if strict && missing > 0 {
				return errors.New(i18n.Tf("%d unresolved keys", missing))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&missingOnly, "missing", false, i18n.T("Only show keys without a translation"))
	cmd.Flags().BoolVar(&strict, "strict", false, i18n.T("Fail when a key cannot be resolved"))
	return cmd
}

// position converts a byte offset to a 1-based line and rune column.
func position(text string, offset int) (line, col int) {
	before := text[:offset]
	line = strings.Count(before, "\n") + 1
	start := strings.LastIndexByte(before, '\n') + 1
	return line, utf8.RuneCountInString(before[start:]) + 1
}

// ---------------------------------------------------------------------------
// locales
// ---------------------------------------------------------------------------

func newLocalesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: i18n.T("Show the locales found in the project"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			ix := a.engine.Snapshot()
			locales := ix.Locales()
			if len(locales) == 0 {
				logWarning(cmd.ErrOrStderr(), "%s", i18n.Tf("No translation files found under %s", a.root))
				return nil
			}

			width := 0
			for _, l := range locales {
				width = max(width, lipgloss.Width(l))
			}
			for _, l := range locales {
				s, _ := ix.Store(l)
				marker := " "
				if l == a.cfg.DisplayLocale() {
					marker = styleOK.Render("*")
				}
				fmt.Fprintf(out, "%s %s  %-10s %s  %s\n",
					marker,
					styleHeader.Render(fmt.Sprintf("%-*s", width, l)),
					s.Format(),
					i18n.N("%d key", "%d keys", len(s.Keys())),
					styleDim.Render(localeDisplayName(l)))
				for _, f := range s.Files() {
					fmt.Fprintf(out, "    %s\n", styleDim.Render(a.rel(f)))
				}
			}
			return nil
		},
	}
}

// localeDisplayName names a locale in its own language, with the English
// name and region flag added when known.
func localeDisplayName(locale string) string {
	if locale == engine.DefaultLocale {
		return i18n.T("no locale suffix")
	}
	m, ok := langmeta.Resolve(locale)
	if !ok {
		return ""
	}
	if m.Flag != "" {
		return m.Flag + " " + m.Label()
	}
	return m.Label()
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: i18n.T("Reload the index whenever translation files change"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cancel := a.engine.OnChange(func() {
				a.log.Info("index updated",
					"locales", len(a.engine.Locales()),
					"keys", len(a.engine.AllKeys()))
			})
			defer cancel()

			w := watch.New(watch.Options{
				Root:     a.root,
				SkipDirs: a.cfg.SkipDirs,
				Debounce: debounce,
				Logger:   a.log,
			}, a.engine)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, i18n.T("Quiet period before reloading"))
	return cmd
}
