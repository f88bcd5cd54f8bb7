// internal/analytics/search.go
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// SearchParams selects one of the canned cross-session queries.
type SearchParams struct {
	Type      models.QueryType `json:"queryType"`
	TraineeID string           `json:"traineeId,omitempty"`
	Task      string           `json:"task,omitempty"`
	Metric    string           `json:"metric,omitempty"`
	Interval  float64          `json:"interval,omitempty"`
	From      int              `json:"from,omitempty"`
	Size      int              `json:"size,omitempty"`
}

type SearchResult struct {
	Data         []map[string]interface{} `json:"data"`
	Aggregations map[string]interface{}   `json:"aggregations,omitempty"`
	TotalHits    int64                    `json:"totalHits"`
	Took         int64                    `json:"took"`
}

// metricFields whitelists the numeric fields a histogram or sort may touch.
var metricFields = map[string]bool{
	"sparc":              true,
	"ldlj":               true,
	"pathEfficiency":     true,
	"referenceDeviation": true,
	"forceCv":            true,
	"highFreqRatio":      true,
	"completionTimeMs":   true,
	"pathLength":         true,
	"meanSpeed":          true,
	"peakSpeed":          true,
	"overallScore":       true,
}

// Search runs one canned query against the session index.
func (ix *Indexer) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	query, err := buildQuery(params)
	if err != nil {
		return nil, err
	}

	from, size := clampPage(params)
	body, _ := json.Marshal(query)

	req := esapi.SearchRequest{
		Index: []string{ix.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}

	start := time.Now()
	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewSearchTimeoutError(string(params.Type))
		}
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(string(params.Type),
			fmt.Errorf("search failed: %s", res.Status()))
	}

	var envelope struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]interface{} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, errors.NewSearchQueryFailedError(string(params.Type), err)
	}

	result := &SearchResult{
		TotalHits:    envelope.Hits.Total.Value,
		Aggregations: envelope.Aggregations,
		Took:         time.Since(start).Milliseconds(),
	}
	for _, hit := range envelope.Hits.Hits {
		result.Data = append(result.Data, hit.Source)
	}
	return result, nil
}

func clampPage(params SearchParams) (from, size int) {
	from = params.From
	if from < 0 {
		from = 0
	}
	size = params.Size
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	if params.Type == models.QueryTypeMetricHistogram {
		size = 0
	}
	return from, size
}

// buildQuery assembles the search body for one query type.
func buildQuery(params SearchParams) (map[string]interface{}, error) {
	switch params.Type {
	case models.QueryTypeSessionsByTrainee:
		if params.TraineeID == "" {
			return nil, errors.NewInputValidationFailedError("traineeId is required")
		}
		filters := []interface{}{term("traineeId", params.TraineeID), wholeSessionOnly()}
		if params.Task != "" {
			filters = append(filters, term("task", params.Task))
		}
		return searchBody(filters, sortBy("completedAt", "desc")), nil

	case models.QueryTypeSessionsByTask:
		if params.Task == "" {
			return nil, errors.NewInputValidationFailedError("task is required")
		}
		filters := []interface{}{term("task", params.Task), wholeSessionOnly()}
		return searchBody(filters, sortBy("completedAt", "desc")), nil

	case models.QueryTypeTraineeProgress:
		if params.TraineeID == "" || params.Task == "" {
			return nil, errors.NewInputValidationFailedError("traineeId and task are required")
		}
		filters := []interface{}{
			term("traineeId", params.TraineeID),
			term("task", params.Task),
			wholeSessionOnly(),
		}
		return searchBody(filters, sortBy("completedAt", "asc")), nil

	case models.QueryTypeTaskLeaderboard:
		if params.Task == "" {
			return nil, errors.NewInputValidationFailedError("task is required")
		}
		filters := []interface{}{term("task", params.Task), wholeSessionOnly()}
		body := searchBody(filters, sortBy("overallScore", "desc"))
		// One row per trainee: their best-scored session.
		body["collapse"] = map[string]interface{}{"field": "traineeId"}
		return body, nil

	case models.QueryTypeMetricHistogram:
		if params.Task == "" || params.Metric == "" {
			return nil, errors.NewInputValidationFailedError("task and metric are required")
		}
		if !metricFields[params.Metric] {
			return nil, errors.NewInputValidationFailedError(
				fmt.Sprintf("metric %q is not histogrammable", params.Metric))
		}
		interval := params.Interval
		if interval <= 0 {
			interval = 0.1
		}
		filters := []interface{}{term("task", params.Task), wholeSessionOnly()}
		body := searchBody(filters, nil)
		body["aggs"] = map[string]interface{}{
			"metric_histogram": map[string]interface{}{
				"histogram": map[string]interface{}{
					"field":    params.Metric,
					"interval": interval,
				},
			},
		}
		return body, nil
	}
	return nil, errors.NewInputValidationFailedError(
		fmt.Sprintf("unknown query type %q", params.Type))
}

func searchBody(filters []interface{}, sort []interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	}
	if sort != nil {
		body["sort"] = sort
	}
	return body
}

func term(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{field: value},
	}
}

// wholeSessionOnly excludes per-gesture rows from session-level queries.
func wholeSessionOnly() map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must_not": []interface{}{
				map[string]interface{}{
					"exists": map[string]interface{}{"field": "gesture"},
				},
			},
		},
	}
}

func sortBy(field, order string) []interface{} {
	return []interface{}{
		map[string]interface{}{field: map[string]interface{}{"order": order}},
	}
}
