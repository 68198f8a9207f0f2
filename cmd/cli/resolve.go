package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mangaguide/pkg/models"
)

func newResolveCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <anime title> <episode>",
		Short: "Show where to continue reading after an episode",
		Example: `  mangaguide resolve "Jujutsu Kaisen" 24
  mangaguide resolve --api http://localhost:8080 JJK 47`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[:len(args)-1], " "))
			episode, err := strconv.Atoi(args[len(args)-1])
			if err != nil {
				return fmt.Errorf("episode must be an integer, got %q", args[len(args)-1])
			}
			req := models.ResolutionRequest{AnimeTitle: title, EpisodeNumber: episode}

			var res models.ResolutionResult
			if cc.remote() {
				res, err = resolveRemote(cmd.Context(), cc.client, cc.apiURL, req)
			} else {
				res, err = resolveLocal(cmd.Context(), cc, req)
			}
			if err != nil {
				return err
			}

			if cc.jsonOut {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(req, res))
			return nil
		},
	}
}

func resolveLocal(ctx context.Context, cc *commandContext, req models.ResolutionRequest) (models.ResolutionResult, error) {
	engine, err := cc.engine(ctx)
	if err != nil {
		return models.ResolutionResult{}, err
	}
	defer engine.Close()
	res, err := engine.Cascade.Resolve(ctx, req)
	if err != nil {
		return res, err
	}
	return engine.Covers.Stamp(ctx, req.AnimeTitle, res), nil
}

func resolveRemote(ctx context.Context, client *http.Client, baseURL string, req models.ResolutionRequest) (models.ResolutionResult, error) {
	q := url.Values{}
	q.Set("anime", req.AnimeTitle)
	q.Set("episode", strconv.Itoa(req.EpisodeNumber))
	endpoint := strings.TrimRight(baseURL, "/") + "/resolve?" + q.Encode()

	var res models.ResolutionResult
	if err := doJSON(ctx, client, http.MethodGet, endpoint, &res); err != nil {
		return models.ResolutionResult{}, err
	}
	return res, nil
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, endpoint, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func renderResult(req models.ResolutionRequest, res models.ResolutionResult) string {
	rows := [][]string{
		{"Anime", req.AnimeTitle},
		{"Episode", strconv.Itoa(req.EpisodeNumber)},
		{"Continue from chapter", optInt(res.ContinueFromChapter)},
		{"Volume", optInt(res.ContinueFromVolume)},
		{"Buy volume", optInt(res.BuyVolume)},
		{"Confidence", string(res.Confidence)},
		{"Verified", strconv.FormatBool(res.Verified)},
		{"Method", res.Method},
		{"Source", res.SourceMaterial},
	}
	if res.SpecialNotes != nil {
		rows = append(rows, []string{"Notes", *res.SpecialNotes})
	}
	if res.VolumeCoverURL != nil {
		rows = append(rows, []string{"Cover", *res.VolumeCoverURL})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil) + "\n" + res.Reasoning
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
