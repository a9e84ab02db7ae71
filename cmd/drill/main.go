package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/arena"
	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/manifest"
	"github.com/wippyai/handletable/wasmgen"
)

type overrides struct {
	bitsPerLevel int
	maxLevels    int
	sizeBits     int
	sizeBase     int
	arenaBits    int
	minLevels    int
	stopEarly    bool
}

func main() {
	var (
		configFile   = flag.String("config", "", "YAML configuration file (defaults apply when empty)")
		bitsPerLevel = flag.Int("bits-per-level", 0, "Override bits_per_level")
		maxLevels    = flag.Int("max-levels", 0, "Override max_levels")
		sizeBits     = flag.Int("size-bits", 0, "Override size_bits")
		sizeBase     = flag.Int("size-base", 0, "Override size_base")
		arenaBits    = flag.Int("arena-bits", 0, "Override arena_bits")
		minLevels    = flag.Int("min-levels", 0, "Override min_levels")
		stopEarly    = flag.Bool("stop-early", false, "Stop planning at the first infeasible class")
		list         = flag.Bool("list", false, "Print the size class table")
		wasmOut      = flag.String("wasm", "", "Write the generated walker module to this file")
		manifestOut  = flag.String("manifest", "", "Write the CBOR layout manifest to this file")
		handleArg    = flag.String("handle", "", "Decompose a hex handle and exit")
		interactive  = flag.Bool("i", false, "Interactive handle explorer")
		verbose      = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
		handletable.SetLogger(log.Named("plan"))
		wasmgen.SetLogger(log.Named("wasm"))
		arena.SetLogger(log.Named("arena"))
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	o := overrides{
		bitsPerLevel: *bitsPerLevel,
		maxLevels:    *maxLevels,
		sizeBits:     *sizeBits,
		sizeBase:     *sizeBase,
		arenaBits:    *arenaBits,
		minLevels:    *minLevels,
		stopEarly:    *stopEarly,
	}

	cfg, err := loadConfig(*configFile, o, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := handletable.Generate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(p); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(p, *handleArg, *list, *wasmOut, *manifestOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// the user actually set.
func loadConfig(path string, o overrides, set map[string]bool) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if set["bits-per-level"] {
		cfg.BitsPerLevel = o.bitsPerLevel
	}
	if set["max-levels"] {
		cfg.MaxLevels = o.maxLevels
	}
	if set["size-bits"] {
		cfg.SizeBits = o.sizeBits
	}
	if set["size-base"] {
		cfg.SizeBase = o.sizeBase
	}
	if set["arena-bits"] {
		cfg.ArenaBits = o.arenaBits
	}
	if set["min-levels"] {
		cfg.MinLevels = o.minLevels
	}
	if set["stop-early"] && o.stopEarly {
		cfg.Enumeration = config.StopAtFirstInfeasible
	}
	return cfg, cfg.Validate()
}

func run(p *handletable.Plan, handleArg string, list bool, wasmOut, manifestOut string) error {
	fmt.Printf("Handle bits: %d, bits per level: %d, max levels: %d\n",
		p.Config.HandleBits, p.Config.BitsPerLevel, p.Config.MaxLevels)
	fmt.Printf("Size classes: %d supported of %d\n", p.Dispatch.Supported(), p.Dispatch.Len())

	if list {
		fmt.Println(classTable(p, term.IsTerminal(int(os.Stdout.Fd()))))
	}

	if handleArg != "" {
		h, err := parseHandle(handleArg)
		if err != nil {
			return err
		}
		out, err := describe(p, h)
		if err != nil {
			return err
		}
		fmt.Print(out)
	}

	if wasmOut != "" {
		code, err := wasmgen.Emit(p, nil)
		if err != nil {
			return fmt.Errorf("emit: %w", err)
		}
		if err := os.WriteFile(wasmOut, code, 0o644); err != nil {
			return fmt.Errorf("write wasm: %w", err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", wasmOut, len(code))
	}

	if manifestOut != "" {
		data, err := manifest.Encode(p)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if err := os.WriteFile(manifestOut, data, 0o644); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", manifestOut, len(data))
	}
	return nil
}

// classTable renders one row per size class.
func classTable(p *handletable.Plan, color bool) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("class", "size", "offset", "levels", "wasted", "layout")
	if color {
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
		bad := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if row >= 0 && row < len(p.Classes) && !p.Classes[row].Feasible() {
				return bad
			}
			return lipgloss.NewStyle()
		})
	}

	for _, r := range p.Classes {
		c := r.Class
		if !r.Feasible() {
			t = t.Row(strconv.Itoa(c.Index), formatSize(c.Size), strconv.Itoa(c.OffsetBits), "-", "-", "unsupported")
			continue
		}
		t = t.Row(strconv.Itoa(c.Index), formatSize(c.Size), strconv.Itoa(c.OffsetBits),
			strconv.Itoa(c.IndirectionLevels), strconv.Itoa(c.WastedBits), r.Layout.String())
	}
	return t.String()
}

func formatSize(n uint64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	i := 0
	for n >= 1024 && n%1024 == 0 && i < len(units)-1 {
		n /= 1024
		i++
	}
	return strconv.FormatUint(n, 10) + units[i]
}

func parseHandle(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.ReplaceAll(s, "_", "")
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse handle %q: %w", s, err)
	}
	return h, nil
}

// describe decomposes a handle under the class its size tag names.
func describe(p *handletable.Plan, h uint64) (string, error) {
	tag := p.Dispatch.Tag(h)
	s, err := p.Dispatch.Lookup(tag)
	if err != nil {
		return "", err
	}
	l := s.Layout
	parts := l.Decompose(h)

	var b strings.Builder
	fmt.Fprintf(&b, "handle  %#018x\n", h)
	fmt.Fprintf(&b, "class   %d (%s objects, walker %s)\n", tag, formatSize(s.Class.Size), s.Name())
	fmt.Fprintf(&b, "layout  %s\n", l)
	fmt.Fprintf(&b, "present %t\n", parts.Present)
	fmt.Fprintf(&b, "arena   %d\n", parts.Arena)
	if s.Class.WastedBits > 0 {
		fmt.Fprintf(&b, "wasted  %#x\n", parts.Wasted)
	}
	for i := l.Levels() - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "level %d %d\n", i, parts.Levels[i])
	}
	fmt.Fprintf(&b, "offset  %d\n", parts.Offset)
	return b.String(), nil
}
