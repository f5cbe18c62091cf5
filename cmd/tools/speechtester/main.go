// Command speechtester voices a piece of text with the configured meditation
// synthesizer and writes the mp3 to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eunoia/backend/internal/config"
	"github.com/eunoia/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	backend := flag.String("tts", cfg.Meditation.TTS, "合成后端: openai 或 volcengine")
	text := flag.String("text", "", "要合成的文本")
	voice := flag.String("voice", "", "音色，默认使用后端配置")
	outputPath := flag.String("out", "", "输出 mp3 路径 (默认写入冥想输出目录)")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")
	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal("请通过 -text 指定要合成的文本")
	}

	synth, err := newSynthesizer(*backend, cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	audio, err := synth.Synthesize(ctx, speech.Request{Text: *text, Voice: *voice})
	if err != nil {
		log.Fatalf("[TTS] 合成失败: %v", err)
	}

	out := *outputPath
	if out == "" {
		out = filepath.Join(cfg.Meditation.OutputDir, fmt.Sprintf("speechtester_%d.mp3", time.Now().Unix()))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		log.Fatalf("创建输出目录失败: %v", err)
	}
	if err := os.WriteFile(out, audio, 0o644); err != nil {
		log.Fatalf("写入音频失败: %v", err)
	}

	log.Printf("[TTS] backend=%s bytes=%d elapsed=%s -> %s", *backend, len(audio), time.Since(start).Round(time.Millisecond), out)
	if int64(len(audio)) > cfg.Meditation.MaxAudioBytes {
		log.Printf("[WARN] 音频超过上限 %d 字节，服务端会拒绝保存", cfg.Meditation.MaxAudioBytes)
	}
}

func newSynthesizer(backend string, cfg *config.Config) (speech.Synthesizer, error) {
	switch strings.ToLower(backend) {
	case config.TTSVolcengine:
		if !cfg.Speech.Enabled {
			return nil, fmt.Errorf("语音服务未启用，请先配置 SPEECH_APP_ID 与 SPEECH_ACCESS_TOKEN")
		}
		return speech.NewVolcengineSynthesizer(cfg.Speech, 0), nil
	case config.TTSOpenAI:
		if !cfg.Providers.OpenAI.Enabled() {
			return nil, fmt.Errorf("请先配置 OPENAI_API_KEY")
		}
		return speech.NewOpenAISynthesizer(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL, 0), nil
	default:
		return nil, fmt.Errorf("未知的合成后端 %q", backend)
	}
}
