package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eunoia/backend/internal/config"
)

// DefaultVolcengineURL 是单向流式语音合成接口。
const DefaultVolcengineURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

// VolcengineSynthesizer 通过火山引擎单向流式 TTS 合成 mp3。
type VolcengineSynthesizer struct {
	cfg      config.SpeechConfig
	url      string
	dialer   *websocket.Dialer
	maxBytes int64
}

// NewVolcengineSynthesizer 创建合成器，maxBytes 为 0 表示不限制音频大小。
func NewVolcengineSynthesizer(cfg config.SpeechConfig, maxBytes int64) *VolcengineSynthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VolcengineSynthesizer{
		cfg:      cfg,
		url:      DefaultVolcengineURL,
		dialer:   &websocket.Dialer{HandshakeTimeout: timeout},
		maxBytes: maxBytes,
	}
}

// WithURL 替换服务地址，测试时指向本地服务。
func (s *VolcengineSynthesizer) WithURL(url string) *VolcengineSynthesizer {
	s.url = url
	return s
}

type volcengineRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                `json:"speaker"`
		Text        string                `json:"text"`
		Language    string                `json:"language,omitempty"`
		AudioParams volcengineAudioParams `json:"audio_params"`
	} `json:"req_params"`
}

type volcengineAudioParams struct {
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	SpeedRatio float32 `json:"speed_ratio,omitempty"`
}

type volcengineResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

// Synthesize 实现 Synthesizer。
func (s *VolcengineSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if !s.cfg.Enabled {
		return nil, ErrNotConfigured
	}

	speaker := strings.TrimSpace(req.Voice)
	if speaker == "" {
		speaker = s.cfg.Voice
	}

	if timeout := s.cfg.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", s.cfg.AppID)
	header.Set("X-Api-Access-Key", s.cfg.AccessToken)
	header.Set("X-Api-Resource-Id", resourceIDFor(speaker))
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
			log.Printf("[tts] connected logid=%s", logID)
		}
	}

	// 读阻塞时依靠关闭连接响应取消。
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	payload, err := s.buildRequest(connectID, speaker, req.Text)
	if err != nil {
		return nil, err
	}
	request := encodeFrame(frame{
		Type:          msgFullClientRequest,
		Flags:         flagNoSequence,
		Serialization: serializationJSON,
		Compression:   compressionNone,
		Payload:       payload,
	})
	if err := conn.WriteMessage(websocket.BinaryMessage, request); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		f, err := decodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS frame: %w", err)
		}

		switch f.Type {
		case msgError:
			return nil, fmt.Errorf("TTS error %d: %s", f.ErrorCode, string(f.Payload))

		case msgAudioOnlyResponse:
			audio.Write(f.Payload)

		case msgFullServerResponse:
			if f.hasEvent() && f.Event == eventSessionFailed {
				return nil, fmt.Errorf("TTS session failed: %s", string(f.Payload))
			}

			var body volcengineResponse
			if len(f.Payload) > 0 {
				if err := sonic.ConfigStd.Unmarshal(f.Payload, &body); err != nil {
					log.Printf("[tts] ignoring undecodable payload: %v", err)
				} else {
					if body.Code != 0 && body.Code != 3000 && body.Code != 20000000 {
						return nil, fmt.Errorf("TTS API error %d: %s", body.Code, body.Message)
					}
					if body.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(body.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			if f.isLast() || body.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, ErrEmptyAudio
				}
				return audio.Bytes(), nil
			}

		default:
			log.Printf("[tts] unexpected message type: %d", f.Type)
		}

		if f.Type == msgAudioOnlyResponse && f.isLast() {
			return audio.Bytes(), nil
		}
		if s.maxBytes > 0 && int64(audio.Len()) > s.maxBytes {
			return audio.Bytes(), nil
		}
	}
}

func (s *VolcengineSynthesizer) buildRequest(uid, speaker, text string) ([]byte, error) {
	var req volcengineRequest
	req.User.UID = uid
	req.ReqParams.Speaker = speaker
	req.ReqParams.Text = text
	req.ReqParams.Language = s.cfg.Language
	req.ReqParams.AudioParams = volcengineAudioParams{Format: "mp3", SampleRate: 24000}
	if s.cfg.Speed > 0 && s.cfg.Speed != 1.0 {
		req.ReqParams.AudioParams.SpeedRatio = s.cfg.Speed
	}

	payload, err := sonic.ConfigStd.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	return payload, nil
}

// resourceIDFor 根据音色选择资源 ID：复刻音色用 megatts，大模型音色用 seed-tts。
func resourceIDFor(speaker string) string {
	if strings.HasPrefix(speaker, "S_") {
		return "volc.megatts.default"
	}
	normalized := strings.ToLower(speaker)
	for _, hint := range []string{"bigtts", "seed", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return "seed-tts-2.0"
		}
	}
	return "volc.service_type.10029"
}
