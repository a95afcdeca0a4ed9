// Command send_wav pushes a prerecorded WAV file through one dispatch
// round trip and prints the backend's reply. Useful for checking the
// wire contract without a microphone.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lumenvoice/voxloop/pkg/dispatch"
	"github.com/lumenvoice/voxloop/pkg/wav"
	"github.com/spf13/viper"
)

type backendConfig struct {
	Backend struct {
		URL       string `mapstructure:"url"`
		VoiceID   string `mapstructure:"voice_id"`
		Transport string `mapstructure:"transport"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	} `mapstructure:"backend"`
}

func main() {
	configPath := flag.String("config", "", "voxloop config file with the backend block")
	urlFlag := flag.String("url", "", "backend URL (overrides config)")
	file := flag.String("file", "", "path to a 16-bit mono WAV file")
	voice := flag.String("voice", "Fritz-PlayAI", "voice identifier")
	transport := flag.String("transport", "http", "http or websocket")
	out := flag.String("out", "", "write response audio to this path")
	flag.Parse()

	if *file == "" {
		fmt.Println("usage: send_wav -file=utterance.wav [-url=... | -config=...]")
		os.Exit(1)
	}

	url := *urlFlag
	timeout := 30 * time.Second
	if *configPath != "" {
		cfg, err := loadBackendConfig(*configPath)
		if err != nil {
			fmt.Println("config error:", err)
			os.Exit(1)
		}
		if url == "" {
			url = cfg.Backend.URL
		}
		if cfg.Backend.VoiceID != "" && *voice == "Fritz-PlayAI" {
			*voice = cfg.Backend.VoiceID
		}
		if cfg.Backend.Transport != "" && *transport == "http" {
			*transport = cfg.Backend.Transport
		}
		if cfg.Backend.TimeoutMS > 0 {
			timeout = time.Duration(cfg.Backend.TimeoutMS) * time.Millisecond
		}
	}
	if url == "" {
		fmt.Println("backend URL is empty")
		os.Exit(1)
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		fmt.Println("read error:", err)
		os.Exit(1)
	}
	if _, err := wav.DecodeInfo(payload); err != nil {
		fmt.Println("not a usable WAV file:", err)
		os.Exit(1)
	}

	var dispatcher dispatch.Dispatcher
	switch *transport {
	case "websocket":
		dispatcher, err = dispatch.NewWS(dispatch.WSConfig{URL: url, Timeout: timeout})
	default:
		dispatcher, err = dispatch.NewHTTP(dispatch.HTTPConfig{URL: url, Timeout: timeout})
	}
	if err != nil {
		fmt.Println("dispatcher error:", err)
		os.Exit(1)
	}

	res, err := dispatcher.Dispatch(context.Background(), dispatch.Request{
		Audio:   wav.Payload(payload),
		VoiceID: *voice,
	})
	if err != nil {
		fmt.Println("dispatch error:", err)
		os.Exit(1)
	}

	fmt.Println("status:       ", res.Status)
	if res.Message != "" {
		fmt.Println("message:      ", res.Message)
	}
	fmt.Println("transcription:", res.Transcription)
	fmt.Println("response:     ", res.ResponseText)
	fmt.Printf("audio:         %d bytes\n", len(res.ResponseAudio))

	if *out != "" && len(res.ResponseAudio) > 0 {
		if err := os.WriteFile(*out, res.ResponseAudio, 0o644); err != nil {
			fmt.Println("write error:", err)
			os.Exit(1)
		}
		fmt.Println("saved:        ", *out)
	}
}

func loadBackendConfig(path string) (backendConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return backendConfig{}, err
	}
	var cfg backendConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return backendConfig{}, err
	}
	return cfg, nil
}
