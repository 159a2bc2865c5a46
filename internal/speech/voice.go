package speech

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

const voiceExt = ".onnx"

// Voice is a Piper voice model on disk plus the parts of its
// <model>.onnx.json config the pipeline needs.
type Voice struct {
	Name       string
	ModelPath  string
	ConfigPath string
	SampleRate int
	Language   string
	Speakers   int
}

// voiceConfig mirrors the fields read from a Piper voice config.
type voiceConfig struct {
	Audio struct {
		SampleRate int    `json:"sample_rate"`
		Quality    string `json:"quality"`
	} `json:"audio"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	NumSpeakers int `json:"num_speakers"`
}

// ListVoices returns the file names of the voice models in dir, sorted.
// Only regular files ending in .onnx count.
func ListVoices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list voices in %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), voiceExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LoadVoice resolves name inside dir and reads its config. The .onnx
// suffix is optional. When onnxLib is set the model is also opened with
// ONNX Runtime to confirm it is a loadable graph. Every failure wraps
// domain.ErrVoiceLoad.
func LoadVoice(dir, name, onnxLib string, log *logger.Logger) (*Voice, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: no voice given", domain.ErrVoiceLoad)
	}
	if !strings.HasSuffix(name, voiceExt) {
		name += voiceExt
	}

	v := &Voice{
		Name:       name,
		ModelPath:  filepath.Join(dir, name),
		SampleRate: DefaultVoiceSampleRate,
		Speakers:   1,
	}
	v.ConfigPath = v.ModelPath + ".json"

	info, err := os.Stat(v.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVoiceLoad, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a file", domain.ErrVoiceLoad, v.ModelPath)
	}

	raw, err := os.ReadFile(v.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: voice config: %v", domain.ErrVoiceLoad, err)
	}
	var cfg voiceConfig
	if err := sonic.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrVoiceLoad, v.ConfigPath, err)
	}
	if cfg.Audio.SampleRate > 0 {
		v.SampleRate = cfg.Audio.SampleRate
	}
	if cfg.NumSpeakers > 0 {
		v.Speakers = cfg.NumSpeakers
	}
	v.Language = cfg.Language.Code

	if onnxLib != "" {
		if err := verifyModel(v.ModelPath, onnxLib, log); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrVoiceLoad, err)
		}
	}

	log.Info("voice: loaded %s (rate=%d, lang=%s, speakers=%d)", v.Name, v.SampleRate, v.Language, v.Speakers)
	return v, nil
}

// LanguageHint returns the ISO-639-1 part of the voice language code
// ("en_GB" gives "en"), or "" when the config did not name one.
func (v *Voice) LanguageHint() string {
	lang, _, _ := strings.Cut(v.Language, "_")
	lang = strings.ToLower(lang)
	if len(lang) != 2 {
		return ""
	}
	return lang
}

// CheckSpeaker reports an error when id is not a speaker of v. Negative ids
// select the voice default and are always accepted.
func (v *Voice) CheckSpeaker(id int) error {
	if id < v.Speakers {
		return nil
	}
	return fmt.Errorf("speaker %d out of range: %s has %d speaker(s)", id, v.Name, v.Speakers)
}

// verifyModel opens the model graph with ONNX Runtime and checks that it
// declares inputs and outputs.
func verifyModel(modelPath, onnxLib string, log *logger.Logger) error {
	log.Debug("voice: checking model with ONNX runtime (lib=%s)", onnxLib)
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(onnxLib)
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx runtime init: %w", err)
		}
		defer ort.DestroyEnvironment()
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return errors.New("model declares no inputs or outputs")
	}
	for _, in := range inputs {
		log.Debug("voice: model input %s", in.Name)
	}
	return nil
}
