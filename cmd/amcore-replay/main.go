// Command amcore-replay drives an hz.tools/am Receiver over a captured raw
// i8 IQ file and writes the demodulated audio as raw little-endian
// float32, logging per-block progress. It is a host harness for exercising
// the core end to end, not a replacement for the USB/GUI/audio-sink
// collaborators the core itself deliberately leaves out.
package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"hz.tools/am"
)

type fileConfig struct {
	SampleRate       float64 `yaml:"sample_rate"`
	CenterFreq       float64 `yaml:"center_freq"`
	TargetFreq       float64 `yaml:"target_freq"`
	DecimationFactor int     `yaml:"decimation_factor"`
	OutputSampleRate float64 `yaml:"output_sample_rate"`
	FFTSize          int     `yaml:"fft_size"`
	FFTVisibleStart  int     `yaml:"fft_visible_start"`
	FFTVisibleBins   int     `yaml:"fft_visible_bins"`
	IFMinHz          float64 `yaml:"if_min_hz"`
	IFMaxHz          float64 `yaml:"if_max_hz"`
	DcCancelEnabled  bool    `yaml:"dc_cancel_enabled"`
	FFTUseProcessed  bool    `yaml:"fft_use_processed"`
}

func main() {
	var (
		iqFile          = flag.String("iq-file", "", "path to a raw i8 IQ capture")
		outAudio        = flag.String("out-audio", "", "path to write raw float32 LE audio")
		configPath      = flag.String("config", "", "optional YAML config file (its values override the flags)")
		sampleRate      = flag.Float64("sample-rate", 2_000_000, "host IQ sample rate, Hz")
		centerFreq      = flag.Float64("center-freq", 0, "tuner center frequency, Hz")
		targetFreq      = flag.Float64("target-freq", 0, "desired receive frequency, Hz")
		decimation      = flag.Int("decimation", 40, "integer decimation factor")
		outputRate      = flag.Float64("output-rate", 48000, "audio output sample rate, Hz")
		fftSize         = flag.Int("fft-size", 1024, "FFT size, power of two")
		ifMin           = flag.Float64("if-min", 0, "IF passband low edge, Hz")
		ifMax           = flag.Float64("if-max", 4500, "IF passband high edge, Hz")
		dcCancel        = flag.Bool("dc-cancel", true, "enable DC cancellation")
		fftUseProcessed = flag.Bool("fft-use-processed", false, "feed FFT from processed baseband instead of raw IQ")
		blockSamples    = flag.Int("block-samples", 131072, "IQ sample pairs read per block")
		logLevel        = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	logger := log.New(os.Stderr)
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if *iqFile == "" {
		logger.Fatal("missing required flag", "flag", "--iq-file")
	}

	cfg := am.ReceiverConfig{
		SampleRate:       *sampleRate,
		CenterFreq:       *centerFreq,
		TargetFreq:       *targetFreq,
		DecimationFactor: *decimation,
		OutputSampleRate: *outputRate,
		FFTSize:          *fftSize,
		FFTVisibleStart:  0,
		FFTVisibleBins:   *fftSize,
		IFMinHz:          *ifMin,
		IFMaxHz:          *ifMax,
		DcCancelEnabled:  *dcCancel,
		FFTUseProcessed:  *fftUseProcessed,
		Logger:           logger,
	}

	if *configPath != "" {
		applyConfigFile(*configPath, &cfg, logger)
	}

	if err := run(*iqFile, *outAudio, *blockSamples, cfg, logger); err != nil {
		logger.Fatal("replay failed", "err", err)
	}
}

// applyConfigFile overlays the YAML file at path onto cfg, which already
// holds the flag values. Non-zero numeric fields in the file replace the
// corresponding values; if_min_hz, if_max_hz, dc_cancel_enabled and
// fft_use_processed are always taken from the file, reading as zero/false
// when absent. Flags given on the command line do not take precedence over
// the file.
func applyConfigFile(path string, cfg *am.ReceiverConfig, logger *log.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading config file", "path", path, "err", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		logger.Fatal("parsing config file", "path", path, "err", err)
	}

	if fc.SampleRate != 0 {
		cfg.SampleRate = fc.SampleRate
	}
	if fc.CenterFreq != 0 {
		cfg.CenterFreq = fc.CenterFreq
	}
	if fc.TargetFreq != 0 {
		cfg.TargetFreq = fc.TargetFreq
	}
	if fc.DecimationFactor != 0 {
		cfg.DecimationFactor = fc.DecimationFactor
	}
	if fc.OutputSampleRate != 0 {
		cfg.OutputSampleRate = fc.OutputSampleRate
	}
	if fc.FFTSize != 0 {
		cfg.FFTSize = fc.FFTSize
		cfg.FFTVisibleBins = fc.FFTSize
	}
	if fc.FFTVisibleStart != 0 {
		cfg.FFTVisibleStart = fc.FFTVisibleStart
	}
	if fc.FFTVisibleBins != 0 {
		cfg.FFTVisibleBins = fc.FFTVisibleBins
	}
	cfg.IFMinHz = fc.IFMinHz
	cfg.IFMaxHz = fc.IFMaxHz
	cfg.DcCancelEnabled = fc.DcCancelEnabled
	cfg.FFTUseProcessed = fc.FFTUseProcessed
}

func run(iqPath, outAudioPath string, blockSamples int, cfg am.ReceiverConfig, logger *log.Logger) error {
	in, err := os.Open(iqPath)
	if err != nil {
		return fmt.Errorf("amcore-replay: opening iq file: %w", err)
	}
	defer in.Close()

	var out *os.File
	if outAudioPath != "" {
		out, err = os.Create(outAudioPath)
		if err != nil {
			return fmt.Errorf("amcore-replay: creating audio output: %w", err)
		}
		defer out.Close()
	}

	receiver := am.NewReceiver(cfg)

	block := make([]byte, blockSamples*2)
	iq := make([]int8, blockSamples*2)

	var totalBlocks, totalAudioSamples int
	for {
		n, readErr := io.ReadFull(in, block)
		if n > 0 {
			for i := 0; i < n; i++ {
				iq[i] = int8(block[i])
			}
			audio, spectrum := receiver.ProcessAM(iq[:n])
			totalBlocks++
			totalAudioSamples += len(audio)

			if out != nil {
				if err := writeAudioLE(out, audio); err != nil {
					return fmt.Errorf("amcore-replay: writing audio: %w", err)
				}
			}

			logger.Debug("block processed",
				"block", totalBlocks,
				"audio_samples", len(audio),
				"spectrum_bins", len(spectrum),
			)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("amcore-replay: reading iq file: %w", readErr)
		}
	}

	logger.Info("replay complete", "blocks", totalBlocks, "audio_samples", totalAudioSamples)
	return nil
}

func writeAudioLE(w io.Writer, samples []float32) error {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		bits := math.Float32bits(s)
		buf[4*i+0] = byte(bits)
		buf[4*i+1] = byte(bits >> 8)
		buf[4*i+2] = byte(bits >> 16)
		buf[4*i+3] = byte(bits >> 24)
	}
	_, err := w.Write(buf)
	return err
}
