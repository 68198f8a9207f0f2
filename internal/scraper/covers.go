package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	GoogleBooksName = "googlebooks"
	JikanName       = "jikan"
)

// CoverSource finds a cover image URL for one volume of a manga.
type CoverSource interface {
	Name() string
	Cover(ctx context.Context, title string, volume int) (string, error)
}

// GoogleBooks searches the Books API for "<title> volume N manga".
type GoogleBooks struct {
	Client  *http.Client
	BaseURL string
}

func NewGoogleBooks(baseURL string) *GoogleBooks {
	return &GoogleBooks{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (g *GoogleBooks) Name() string { return GoogleBooksName }

type booksResponse struct {
	Items []struct {
		VolumeInfo struct {
			ImageLinks map[string]string `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// largest first
var bookImageSizes = []string{"large", "medium", "small", "thumbnail", "smallThumbnail"}

func (g *GoogleBooks) Cover(ctx context.Context, title string, volume int) (string, error) {
	clean := coverTitle(title)
	if clean == "" || volume < 1 {
		return "", newError(GoogleBooksName, ErrorTypeNoContent, "no title or volume", nil)
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s volume %d manga", clean, volume))
	q.Set("maxResults", "5")

	var out booksResponse
	if err := getJSON(ctx, g.Client, GoogleBooksName, g.BaseURL+"/volumes?"+q.Encode(), &out); err != nil {
		return "", err
	}
	for _, item := range out.Items {
		for _, size := range bookImageSizes {
			if link := strings.TrimSpace(item.VolumeInfo.ImageLinks[size]); link != "" {
				return strings.Replace(link, "http:", "https:", 1), nil
			}
		}
	}
	return "", newError(GoogleBooksName, ErrorTypeNoContent, "no image links", nil)
}

// Jikan falls back to the main MyAnimeList picture of the series. The
// volume is not used.
type Jikan struct {
	Client  *http.Client
	BaseURL string
}

func NewJikan(baseURL string) *Jikan {
	return &Jikan{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (j *Jikan) Name() string { return JikanName }

type jikanImage struct {
	JPG struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"jpg"`
}

func (j *Jikan) Cover(ctx context.Context, title string, _ int) (string, error) {
	clean := coverTitle(title)
	if clean == "" {
		return "", newError(JikanName, ErrorTypeNoContent, "empty title", nil)
	}
	q := url.Values{}
	q.Set("q", clean)
	q.Set("limit", "1")

	var search struct {
		Data []struct {
			MalID int `json:"mal_id"`
		} `json:"data"`
	}
	if err := getJSON(ctx, j.Client, JikanName, j.BaseURL+"/manga?"+q.Encode(), &search); err != nil {
		return "", err
	}
	if len(search.Data) == 0 {
		return "", newError(JikanName, ErrorTypeNoContent, "no manga for "+clean, nil)
	}

	var pics struct {
		Data []jikanImage `json:"data"`
	}
	endpoint := j.BaseURL + "/manga/" + strconv.Itoa(search.Data[0].MalID) + "/pictures"
	if err := getJSON(ctx, j.Client, JikanName, endpoint, &pics); err != nil {
		return "", err
	}
	if len(pics.Data) > 0 {
		if u := pics.Data[0].JPG.LargeImageURL; u != "" {
			return u, nil
		}
		if u := pics.Data[0].JPG.ImageURL; u != "" {
			return u, nil
		}
	}
	return "", newError(JikanName, ErrorTypeNoContent, "no pictures", nil)
}

// CoverChain asks each cover source in turn.
type CoverChain struct {
	Sources []CoverSource
	logger  *zap.Logger
}

func NewCoverChain(logger *zap.Logger, sources ...CoverSource) *CoverChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoverChain{Sources: sources, logger: logger.With(zap.String("component", "covers"))}
}

func (c *CoverChain) Cover(ctx context.Context, title string, volume int) (string, error) {
	lastErr := error(newError("covers", ErrorTypeNoContent, "no cover sources", nil))
	for _, src := range c.Sources {
		if err := ctx.Err(); err != nil {
			return "", newError(src.Name(), ErrorTypeTimeout, "cover lookup cancelled", err)
		}
		u, err := src.Cover(ctx, title, volume)
		if err != nil {
			c.logger.Debug("cover source declined", zap.String("source", src.Name()), zap.Error(err))
			lastErr = err
			continue
		}
		return u, nil
	}
	return "", lastErr
}

func coverTitle(title string) string {
	return strings.Join(strings.Fields(strings.NewReplacer(":", " ", "-", " ").Replace(title)), " ")
}

func getJSON(ctx context.Context, client *http.Client, source, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return newError(source, ErrorTypeUnknown, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return requestError(ctx, source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &LookupError{
			Type:       ErrorTypeUpstream,
			Source:     source,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return newError(source, ErrorTypeMalformed, "decode response", err)
	}
	return nil
}
