package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mangaguide/pkg/models"
)

type coverFunc func(ctx context.Context, title string, volume int) (string, error)

func (f coverFunc) Cover(ctx context.Context, title string, volume int) (string, error) {
	return f(ctx, title, volume)
}

func TestCoversStamp(t *testing.T) {
	var gotTitle string
	var gotVolume int
	covers := NewCovers(coverFunc(func(_ context.Context, title string, volume int) (string, error) {
		gotTitle, gotVolume = title, volume
		return "https://covers.example/jjk16.jpg", nil
	}), time.Second, nil)

	res := covers.Stamp(context.Background(), "JJK", models.ResolutionResult{BuyVolume: models.IntPtr(16)})
	if res.VolumeCoverURL == nil || *res.VolumeCoverURL != "https://covers.example/jjk16.jpg" {
		t.Fatalf("cover = %v", res.VolumeCoverURL)
	}
	if gotTitle != "JJK" || gotVolume != 16 {
		t.Fatalf("finder called with %q, %d", gotTitle, gotVolume)
	}
}

func TestCoversStampSkipsWithoutVolume(t *testing.T) {
	var calls atomic.Int32
	covers := NewCovers(coverFunc(func(context.Context, string, int) (string, error) {
		calls.Add(1)
		return "https://covers.example/x.jpg", nil
	}), time.Second, nil)

	for _, res := range []models.ResolutionResult{
		{Method: models.MethodNotFound},
		{BuyVolume: models.IntPtr(0)},
	} {
		if got := covers.Stamp(context.Background(), "JJK", res); got.VolumeCoverURL != nil {
			t.Fatalf("unexpected cover for %+v", res)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("finder called %d times", calls.Load())
	}

	var disabled *Covers
	if got := disabled.Stamp(context.Background(), "JJK", models.ResolutionResult{BuyVolume: models.IntPtr(3)}); got.VolumeCoverURL != nil {
		t.Fatal("nil covers must leave the result untouched")
	}
}

func TestCoversStampDeclinesToNull(t *testing.T) {
	cases := map[string]coverFunc{
		"error": func(context.Context, string, int) (string, error) { return "", errors.New("boom") },
		"empty": func(context.Context, string, int) (string, error) { return "", nil },
		"panic": func(context.Context, string, int) (string, error) { panic("bad cover source") },
		"slow": func(ctx context.Context, _ string, _ int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			covers := NewCovers(fn, 20*time.Millisecond, nil)
			start := time.Now()
			res := covers.Stamp(context.Background(), "JJK", models.ResolutionResult{BuyVolume: models.IntPtr(8), Reasoning: "kept"})
			if res.VolumeCoverURL != nil || res.Reasoning != "kept" {
				t.Fatalf("result = %+v", res)
			}
			if time.Since(start) > 2*time.Second {
				t.Fatal("cover lookup ignored its timeout")
			}
		})
	}
}

func TestHandlerStampsCoverAfterResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(New(testPredictor(t)), nil, nil)
	h.Covers = NewCovers(coverFunc(func(_ context.Context, _ string, volume int) (string, error) {
		if volume != 8 {
			t.Errorf("volume = %d", volume)
		}
		return "https://covers.example/jjk8.jpg", nil
	}), time.Second, nil)
	h.RegisterRoutes(r.Group("/resolve"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resolve?anime=JJK&episode=24", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["volumeCoverUrl"] != "https://covers.example/jjk8.jpg" {
		t.Fatalf("body = %s", w.Body.String())
	}

	// unknown title: nothing to buy, cover stays an explicit null
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resolve?anime=Unknown+Show&episode=3", nil))
	body = map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if v, ok := body["volumeCoverUrl"]; !ok || v != nil {
		t.Fatalf("expected null volumeCoverUrl: %s", w.Body.String())
	}
}
