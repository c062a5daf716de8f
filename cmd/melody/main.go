package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/leandrodaf/melody/internal/config"
	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/errkind"
	"github.com/leandrodaf/melody/sdk/melody"
	"github.com/leandrodaf/melody/sdk/midifile"
	"github.com/leandrodaf/melody/sdk/sequence"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "record":
		err = runRecord(os.Args[2:])
	case "play":
		err = runPlay(os.Args[2:])
	case "ports":
		err = runPorts(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n  %v\n", errkind.Message(err), err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("melody - play, record and export note sequences")
	fmt.Println("")
	fmt.Println("Usage: melody <command> [flags] [song.json]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  check   - Validate a sequence and print its notes")
	fmt.Println("  export  - Write a sequence as a MIDI file (-o out.mid)")
	fmt.Println("  record  - Render a sequence to a WAV file in real time (-o out.wav)")
	fmt.Println("  play    - Interactive player")
	fmt.Println("  ports   - List MIDI output ports")
	fmt.Println("")
	fmt.Println("A sequence comes from a JSON file {\"notes\": [...], \"tempo\": 120}")
	fmt.Println("or from -notes \"C4,E4,G4\" -tempo 120.")
}

// command holds the flags every subcommand shares.
type command struct {
	fs         *flag.FlagSet
	configPath *string
	notes      *string
	tempo      *int
	verbose    *bool

	cfg *config.Config
	log contracts.Logger
}

func newCommand(name string) *command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &command{
		fs:         fs,
		configPath: fs.String("config", "", "config file (default ~/.config/melody/config.yaml)"),
		notes:      fs.String("notes", "", "comma separated pitches, instead of a file"),
		tempo:      fs.Int("tempo", 0, "tempo for -notes (default from config)"),
		verbose:    fs.Bool("v", false, "debug logging"),
	}
}

// parse reads flags, then the config file, then builds the logger.
func (c *command) parse(args []string) error {
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return errkind.Wrap(err, errkind.Validation, "The configuration file is invalid.")
	}
	c.cfg = cfg

	c.log = logger.NewStandardLogger()
	level, _ := cfg.Level()
	if *c.verbose {
		level = contracts.DebugLevel
	}
	c.log.SetLevel(level)
	if cfg.LogFile != "" {
		c.log.SetDestination(contracts.FileLog, cfg.LogFile)
	}
	return nil
}

// sequence loads the positional JSON file or the -notes list.
func (c *command) sequence() (sequence.NoteSequence, error) {
	if *c.notes != "" {
		tempo := *c.tempo
		if tempo == 0 {
			tempo = c.cfg.Tempo
		}
		tokens := strings.FieldsFunc(*c.notes, func(r rune) bool { return r == ',' || r == ' ' })
		return sequence.FromTokens(tokens, tempo)
	}
	if c.fs.NArg() == 0 {
		return sequence.NoteSequence{}, errkind.New(errkind.Validation, "no input", "Give a song file or -notes.")
	}

	path := c.fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return sequence.NoteSequence{}, errkind.Wrap(err, errkind.Resource, "The song file could not be opened.")
	}
	defer f.Close()
	return sequence.Decode(f)
}

func (c *command) player(extra ...contracts.Option) (*melody.Session, error) {
	opts := append(c.cfg.Options(), contracts.WithLogger(c.log))
	return melody.NewPlayer(append(opts, extra...)...)
}

func printRejected(seq sequence.NoteSequence) {
	for _, r := range seq.Rejected {
		fmt.Printf("  dropped %s\n", r)
	}
}

func runCheck(args []string) error {
	c := newCommand("check")
	if err := c.parse(args); err != nil {
		return err
	}
	seq, err := c.sequence()
	if err != nil {
		return err
	}

	fmt.Printf("tempo %d bpm, %d notes, %s\n", seq.Tempo, len(seq.Notes), seq.TotalDuration())
	var at time.Duration
	for i, n := range seq.Notes {
		fmt.Printf("  %3d  %-4s  midi %3d  %8.2f Hz  at %-8s for %-8s vel %.2f\n",
			i, n.Pitch.Written(), n.Pitch.MIDINumber(), n.Pitch.Frequency(), at, n.Duration, n.Velocity)
		at += n.Duration
	}
	printRejected(seq)
	return nil
}

func runExport(args []string) error {
	c := newCommand("export")
	out := c.fs.String("o", "out.mid", "output MIDI file")
	if err := c.parse(args); err != nil {
		return err
	}
	seq, err := c.sequence()
	if err != nil {
		return err
	}
	printRejected(seq)

	if err := midifile.WriteFile(*out, seq, midifile.WithLogger(c.log)); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d notes, %d bpm)\n", *out, len(seq.Notes), seq.Tempo)
	return nil
}

func runRecord(args []string) error {
	c := newCommand("record")
	out := c.fs.String("o", "out.wav", "output WAV file")
	output := c.fs.String("output", "", "audio output while recording: speaker or null")
	if err := c.parse(args); err != nil {
		return err
	}
	seq, err := c.sequence()
	if err != nil {
		return err
	}
	printRejected(seq)

	var extra []contracts.Option
	if *output != "" {
		extra = append(extra, contracts.WithOutput(contracts.OutputKind(*output)))
	}
	player, err := c.player(extra...)
	if err != nil {
		return err
	}
	defer player.Cleanup()

	f, err := os.Create(*out)
	if err != nil {
		return errkind.Wrap(err, errkind.Resource, "The output file could not be created.")
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("recording %s, this takes %s...\n", *out, player.RecordingDuration(seq).Round(time.Millisecond))
	if err := player.RecordToAudioFile(ctx, seq, f); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runPlay(args []string) error {
	c := newCommand("play")
	if err := c.parse(args); err != nil {
		return err
	}
	seq, err := c.sequence()
	if err != nil {
		return err
	}

	player, err := c.player()
	if err != nil {
		return err
	}
	defer player.Cleanup()

	notes := make(chan noteMsg, 16)
	player.OnNote(forwardNotes(notes, c.log))
	if err := player.Load(seq); err != nil {
		return err
	}

	p := tea.NewProgram(newModel(player, seq, notes), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return player.Stop()
}

func runPorts(args []string) error {
	c := newCommand("ports")
	if err := c.parse(args); err != nil {
		return err
	}

	client, err := melody.NewMIDIOutClient(contracts.MIDIOutConfig{}, c.log)
	if err != nil {
		return err
	}
	defer client.Stop()

	devices, err := client.ListDevices()
	if err != nil {
		return errkind.Wrap(err, errkind.Resource, "No MIDI output ports are available.")
	}
	fmt.Println("=== MIDI Output Ports ===")
	for _, d := range devices {
		if d.Manufacturer != "" {
			fmt.Printf("  %d: %s (%s)\n", d.ID, d.Name, d.Manufacturer)
			continue
		}
		fmt.Printf("  %d: %s\n", d.ID, d.Name)
	}
	return nil
}
