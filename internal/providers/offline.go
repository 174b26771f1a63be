package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gleanlang/glean/internal/lang"
)

const OfflineName = "offline"

// OfflineClient answers chat requests by heuristic extraction over the user
// text, schema-directed and without any network. It backs --mock runs: the
// reply is a JSON object shaped like the plan schema, so the runtime code
// path is identical to a real model call.
type OfflineClient struct {
	schema  *lang.Schema
	schemas map[string]*lang.Schema
}

// NewOfflineClient builds an offline client for schema. schemas resolves
// REF fields; it may be nil for flat schemas.
func NewOfflineClient(schema *lang.Schema, schemas map[string]*lang.Schema) *OfflineClient {
	return &OfflineClient{schema: schema, schemas: schemas}
}

// Name returns the client identifier.
func (c *OfflineClient) Name() string {
	return OfflineName
}

// Chat synthesizes a record from the request's user text.
func (c *OfflineClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	result := &ChatResult{
		RequestID: requestID,
		Provider:  OfflineName,
		Model:     OfflineName,
	}

	rec := c.synthesize(c.schema, req.User)
	data, err := json.Marshal(rec)
	if err != nil {
		result.fail(ErrorTypeBadRequest, err.Error())
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("marshal offline record: %w", err)
	}

	result.Success = true
	result.Content = string(data)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (c *OfflineClient) synthesize(schema *lang.Schema, text string) map[string]any {
	rec := make(map[string]any, len(schema.Fields))
	lower := strings.ToLower(text)
	for _, f := range schema.Fields {
		switch f.Type {
		case lang.TypeText:
			rec[f.Name] = guessMerchant(text)
		case lang.TypeMoney:
			rec[f.Name] = extractMoney(text)
		case lang.TypeNumber:
			rec[f.Name] = extractNumber(text)
		case lang.TypeBool:
			rec[f.Name] = false
		case lang.TypeEnum:
			rec[f.Name] = matchCategory(lower, f.EnumValues)
		case lang.TypeList:
			rec[f.Name] = []any{}
		case lang.TypeRef:
			if ref, ok := c.schemas[f.RefType]; ok {
				rec[f.Name] = c.synthesize(ref, text)
			}
		}
	}
	return rec
}

var merchantBrands = []string{
	"Uber", "Lyft", "Chipotle", "Apple Store", "GitHub", "Marriott",
	"Staples", "Delta", "Starbucks", "Amazon", "Office Depot", "Hilton",
}

// categoryKeywords maps well-known expense categories to trigger words.
// Order matters: the first allowed category with a hit wins.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"travel", []string{"uber", "lyft", "taxi", "flight", "delta", "united", "airline", "hotel", "marriott", "hilton", "airbnb"}},
	{"meals", []string{"lunch", "dinner", "breakfast", "chipotle", "starbucks", "coffee", "restaurant", "food", "pastries"}},
	{"equipment", []string{"macbook", "laptop", "monitor", "apple store", "keyboard", "mouse", "ipad", "phone"}},
	{"software", []string{"github", "subscription", "license", "saas", "slack", "notion", "jira"}},
	{"office", []string{"staples", "paper", "toner", "office depot", "supplies", "pens"}},
}

var (
	moneyRe      = regexp.MustCompile(`\$\s*([\d,]+\.?\d+)`)
	decimalRe    = regexp.MustCompile(`([\d,]+\.\d{2})`)
	numberRe     = regexp.MustCompile(`(\d+\.?\d*)`)
	properNounRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)*)`)
)

func guessMerchant(text string) string {
	lower := strings.ToLower(text)
	for _, brand := range merchantBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	if m := properNounRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "Unknown"
}

func extractMoney(text string) float64 {
	m := moneyRe.FindStringSubmatch(text)
	if m == nil {
		m = decimalRe.FindStringSubmatch(text)
	}
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

func extractNumber(text string) float64 {
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return f
}

func matchCategory(lower string, allowed []string) string {
	for _, cat := range categoryKeywords {
		if !slices.Contains(allowed, cat.name) {
			continue
		}
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.name
			}
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return "other"
}

var _ LLMClient = (*OfflineClient)(nil)
