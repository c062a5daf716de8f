package main

import (
	"fmt"
	"os"
	"time"

	"github.com/leandrodaf/melody/internal/logger"
	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/melody"
	"github.com/leandrodaf/melody/sdk/midifile"
	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
)

func main() {
	log := logger.NewStandardLogger()

	seq, err := sequence.FromTokens([]string{"C4", "E4", "G4", "C5", "G4", "E4", "C4"}, 120)
	if err != nil {
		log.Error("Failed to build sequence", log.Field().Error("error", err))
		return
	}

	if err := midifile.WriteFile("arpeggio.mid", seq, midifile.WithLogger(log)); err != nil {
		log.Error("Failed to export MIDI", log.Field().Error("error", err))
		return
	}
	fmt.Println("Wrote arpeggio.mid")

	player, err := melody.NewPlayer(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithSoundFont(contracts.SoundFontConfig{Path: os.Getenv("MELODY_SOUNDFONT")}),
	)
	if err != nil {
		log.Error("Failed to initialize player", log.Field().Error("error", err))
		return
	}
	defer player.Cleanup()

	player.OnNote(func(p *pitch.Pitch) {
		if p == nil {
			fmt.Println("  -")
			return
		}
		fmt.Printf("  %s (%.2f Hz)\n", p, p.Frequency())
	})

	if err := player.Load(seq); err != nil {
		log.Error("Failed to load sequence", log.Field().Error("error", err))
		return
	}
	if err := player.Play(); err != nil {
		log.Error("Failed to play", log.Field().Error("error", err))
		return
	}

	for player.IsPlaying() {
		time.Sleep(100 * time.Millisecond)
	}
}
