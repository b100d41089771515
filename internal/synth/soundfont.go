package synth

import (
	"bytes"
	"fmt"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/spf13/afero"
)

// LoadSoundFont reads an SF2 file from fs.
func LoadSoundFont(fs afero.Fs, path string) (*meltysynth.SoundFont, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("load soundfont %s: %w", path, err)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load soundfont %s: %w", path, err)
	}
	return sf, nil
}

// NewSoundFontVoicer returns a meltysynth synthesizer playing sf.
func NewSoundFontVoicer(sf *meltysynth.SoundFont, sampleRate int) (*meltysynth.Synthesizer, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	s, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}
	return s, nil
}

// NewSoundFontNode returns a Node rendering through a meltysynth synthesizer.
func NewSoundFontNode(sf *meltysynth.SoundFont, sampleRate int, opts ...NodeOption) (*Node, error) {
	s, err := NewSoundFontVoicer(sf, sampleRate)
	if err != nil {
		return nil, err
	}
	return NewNode(s, sampleRate, opts...), nil
}

var _ Voicer = (*meltysynth.Synthesizer)(nil)
