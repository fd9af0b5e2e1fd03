package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
	"tutorjudge/pkg/errors"
)

const acceptedBody = `{"stdout":"WzAsMV0K","stderr":null,"compile_output":null,"message":null,` +
	`"time":"0.012","memory":3456,"status":{"id":3,"description":"Accepted"}}`

var testProgram = driver.Program{
	Language:     model.Python,
	Source:       "print('[0,1]')\n",
	FunctionName: "twoSum",
	TimeLimit:    time.Second,
}

var testLimits = model.Limits{Time: time.Second, MemoryKB: 128000}

func newTestClient(url string, sleeps *[]time.Duration) *Judge0Client {
	return NewJudge0Client(Judge0Config{
		Endpoint:      url,
		APIKey:        "secret",
		RatePerSecond: 1000,
		Burst:         1000,
	}, WithSleeper(func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}))
}

func TestJudge0RetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("base64_encoded") != "true" || r.URL.Query().Get("wait") != "true" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if r.Header.Get("X-RapidAPI-Key") != "secret" || r.Header.Get("X-RapidAPI-Host") != defaultJudge0Host {
			t.Errorf("missing rapidapi headers: %v", r.Header)
		}
		var req judge0Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		src, _ := base64.StdEncoding.DecodeString(req.SourceCode)
		if string(src) != testProgram.Source || req.LanguageID != 71 || req.Stdin != "" {
			t.Errorf("unexpected submission %+v", req)
		}
		if req.CPUTimeLimit != 1 || req.MemoryLimit != 128000 || req.CompilerOptions != "" {
			t.Errorf("unexpected limits %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(acceptedBody))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	res, err := newTestClient(srv.URL, &sleeps).Execute(context.Background(), testProgram, testLimits)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if want := []time.Duration{500 * time.Millisecond, time.Second}; !reflect.DeepEqual(sleeps, want) {
		t.Errorf("backoff gaps = %v, want %v", sleeps, want)
	}
	if res.Stdout != "[0,1]\n" || res.StatusCode != model.StatusAccepted || res.Source != SourceRemote {
		t.Errorf("unexpected result %+v", res)
	}
	if res.TimeSeconds != 0.012 || res.MemoryKB != 3456 {
		t.Errorf("time/memory = %v/%v", res.TimeSeconds, res.MemoryKB)
	}
}

func TestJudge0TransientClassification(t *testing.T) {
	tests := []struct {
		name        string
		first       func(w http.ResponseWriter)
		wantAttempt int32
		wantCode    errors.ErrorCode
	}{
		{
			name: "429 is retried",
			first: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantAttempt: 2,
		},
		{
			name: "html body is retried",
			first: func(w http.ResponseWriter) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html><body>Bad Gateway</body></html>"))
			},
			wantAttempt: 2,
		},
		{
			name: "other 4xx is definitive",
			first: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"invalid key"}`))
			},
			wantAttempt: 1,
			wantCode:    errors.BackendRejected,
		},
		{
			name: "non submission json is a bad response",
			first: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"error":"weird"}`))
			},
			wantAttempt: 1,
			wantCode:    errors.BackendBadResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&hits, 1) == 1 {
					tt.first(w)
					return
				}
				_, _ = w.Write([]byte(acceptedBody))
			}))
			defer srv.Close()

			var sleeps []time.Duration
			_, err := newTestClient(srv.URL, &sleeps).Execute(context.Background(), testProgram, testLimits)
			if got := atomic.LoadInt32(&hits); got != tt.wantAttempt {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempt)
			}
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("Execute() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("error = %v, want code %d", err, tt.wantCode)
			}
		})
	}
}

func TestJudge0ExhaustedRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	_, err := newTestClient(srv.URL, &sleeps).Execute(context.Background(), testProgram, testLimits)
	if !errors.Is(err, errors.BackendUnavailable) {
		t.Fatalf("error = %v, want BackendUnavailable", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if len(sleeps) != 2 {
		t.Errorf("sleeps = %v, want two gaps", sleeps)
	}
}

func TestJudge0WaitBoundYieldsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewJudge0Client(Judge0Config{Endpoint: srv.URL, APIKey: "secret", WaitOverhead: 50 * time.Millisecond})
	res, err := client.Execute(context.Background(), testProgram, model.Limits{Time: 100 * time.Millisecond, MemoryKB: 64000})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.TimedOut || res.StatusCode != model.StatusTimeLimitExceeded {
		t.Errorf("expected timeout result, got %+v", res)
	}
}

func TestJudge0CppCompilerOptions(t *testing.T) {
	client := NewJudge0Client(Judge0Config{})
	prog := driver.Program{Language: model.Cpp, Source: "int main(){}"}
	req := client.buildRequest(54, prog, testLimits)
	if req.CompilerOptions != "-std=c++17 -O2" {
		t.Errorf("CompilerOptions = %q", req.CompilerOptions)
	}
	if client.Configured() {
		t.Error("client without key should not be configured")
	}
}

func TestDecodeJudge0(t *testing.T) {
	wrapped := "SGVsbG8s\nIHdvcmxk\n"
	msg := base64.StdEncoding.EncodeToString([]byte("Exited with error status 1"))
	res := decodeJudge0(judge0Response{
		Stdout:  &wrapped,
		Message: &msg,
		Status:  &judge0Status{ID: 11, Description: "Runtime Error (NZEC)"},
	})
	if res.Stdout != "Hello, world" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Stderr != "Exited with error status 1" {
		t.Errorf("Stderr = %q, want judge message", res.Stderr)
	}
	if res.StatusDescription != "Runtime Error (NZEC)" {
		t.Errorf("StatusDescription = %q", res.StatusDescription)
	}
}
