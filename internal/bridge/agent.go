package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/tempo/internal/core/aggregate"
	"github.com/colonyops/tempo/internal/core/servicenow"
)

// Agent is tier 3 of the bridge: it executes remote calls against the
// instance with the session's own cookies. The authenticated user identity
// and the CSRF token are resolved lazily and cached for the agent's
// lifetime; the token is mandatory for mutating calls only.
type Agent struct {
	base   string
	client *http.Client
	log    zerolog.Logger

	mu    sync.Mutex
	user  *servicenow.SessionUser
	token string
}

var _ Handler = (*Agent)(nil)

// NewAgent builds an agent bound to one session. When the session names a
// cookie file, its cookies seed the agent's jar.
func NewAgent(sess servicenow.Session, log zerolog.Logger) (*Agent, error) {
	baseURL, err := url.Parse(sess.Origin)
	if err != nil || baseURL.Host == "" {
		return nil, servicenow.NewError(servicenow.CodeNoConfig, "session %s has no usable origin: %q", sess.ID, sess.Origin)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if sess.CookieFile != "" {
		cookies, err := loadCookieFile(sess.CookieFile)
		if err != nil {
			return nil, fmt.Errorf("load session cookies: %w", err)
		}
		jar.SetCookies(baseURL, cookies)
	}

	return &Agent{
		base:   strings.TrimRight(sess.Origin, "/"),
		client: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		log:    log.With().Str("session", sess.ID).Logger(),
	}, nil
}

type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path,omitempty"`
	Domain string `json:"domain,omitempty"`
	Secure bool   `json:"secure,omitempty"`
}

func loadCookieFile(path string) ([]*http.Cookie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode cookie file %s: %w", path, err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
			Secure: c.Secure,
		})
	}
	return cookies, nil
}

// Handle executes one bridge request. Every failure comes back as a coded
// response; nothing escapes as a raw error.
func (a *Agent) Handle(ctx context.Context, env Envelope) Response {
	switch env.Action {
	case ActionCheckSession:
		user, err := a.resolveUser(ctx)
		if err != nil {
			return ErrResponse(err)
		}
		return OKResponse(user)

	case ActionFetchLookups:
		lookups, err := a.fetchLookups(ctx)
		if err != nil {
			return ErrResponse(err)
		}
		return OKResponse(lookups)

	case ActionSyncTimeCards:
		var payload SyncPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return ErrResponse(servicenow.NewError(servicenow.CodeAPIError, "decode sync payload: %v", err))
			}
		}
		report, err := a.syncTimeCards(ctx, payload.Groups)
		if err != nil {
			return ErrResponse(err)
		}
		return OKResponse(report)

	default:
		return ErrResponse(servicenow.NewError(servicenow.CodeAPIError, "unknown bridge action %q", env.Action))
	}
}

// resolveUser returns the authenticated remote user, querying the session
// endpoint on first use.
func (a *Agent) resolveUser(ctx context.Context) (servicenow.SessionUser, error) {
	a.mu.Lock()
	cached := a.user
	a.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	var body struct {
		Result struct {
			UserID          string `json:"user_id"`
			UserSysID       string `json:"user_sys_id"`
			UserName        string `json:"user_name"`
			UserDisplayName string `json:"user_display_name"`
		} `json:"result"`
	}
	if err := a.get(ctx, "/api/now/ui/session", nil, &body); err != nil {
		return servicenow.SessionUser{}, err
	}

	user := servicenow.SessionUser{
		UserID:   body.Result.UserID,
		UserName: body.Result.UserName,
	}
	if user.UserID == "" {
		user.UserID = body.Result.UserSysID
	}
	if user.UserName == "" {
		user.UserName = body.Result.UserDisplayName
	}
	if user.UserID == "" {
		return servicenow.SessionUser{}, servicenow.NewError(servicenow.CodeNotLoggedIn, "session endpoint returned no user").
			WithHint("Log in to your instance in the browser, then retry.")
	}

	a.mu.Lock()
	a.user = &user
	a.mu.Unlock()
	return user, nil
}

// resolveToken returns the CSRF-equivalent token, fetching it on first
// use. Mutating calls cannot proceed without one.
func (a *Agent) resolveToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	cached := a.token
	a.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var body map[string]json.RawMessage
	if err := a.get(ctx, "/sn_devstudio_/v1/get_publish_info", nil, &body); err != nil {
		return "", err
	}

	token := tokenFrom(body)
	if token == "" {
		if nested, ok := body["result"]; ok {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(nested, &inner); err == nil {
				token = tokenFrom(inner)
			}
		}
	}
	if token == "" {
		return "", servicenow.NewError(servicenow.CodeCSRFMissing, "no CSRF token in publish info response").
			WithHint("Reload the instance page in your browser session and retry.")
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	return token, nil
}

// tokenFrom checks the known token field spellings in order.
func tokenFrom(fields map[string]json.RawMessage) string {
	for _, key := range []string{"ck", "csrf_token", "csrfToken"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// taskQuery matches open tasks assigned to the user: not closed (7),
// closed-complete (3), or closed-cancelled (4), with NULL states kept.
const taskQuery = "assigned_to=%s^state!=7^ORstate=NULL^state!=3^ORstate=NULL^state!=4^ORstate=NULL"

// categoryQuery selects the active English category choices of time_card.
const categoryQuery = "name=time_card^element=category^language=en^inactive=false"

// fetchLookups reads the three reference datasets in parallel.
func (a *Agent) fetchLookups(ctx context.Context) (servicenow.LookupSet, error) {
	user, err := a.resolveUser(ctx)
	if err != nil {
		return servicenow.LookupSet{}, err
	}

	var (
		tasks      []servicenow.TaskRef
		categories []servicenow.Category
		codes      []servicenow.TimeCode
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.queryTable(gctx, "task", fmt.Sprintf(taskQuery, user.UserID),
			"sys_id,number,short_description,state")
		if err != nil {
			return err
		}
		for _, row := range rows {
			tasks = append(tasks, servicenow.TaskRef{
				SysID:            row.value("sys_id"),
				Number:           row.display("number"),
				ShortDescription: row.display("short_description"),
				State:            row.display("state"),
			})
		}
		return nil
	})
	g.Go(func() error {
		rows, err := a.queryTable(gctx, "sys_choice", categoryQuery,
			"sys_id,value,label,language,sequence")
		if err != nil {
			return err
		}
		for _, row := range rows {
			if lang := row.value("language"); lang != "" && lang != "en" {
				continue
			}
			seq, _ := strconv.Atoi(row.value("sequence"))
			categories = append(categories, servicenow.Category{
				SysID:    row.value("sys_id"),
				Value:    row.value("value"),
				Label:    row.display("label"),
				Language: "en",
				Sequence: seq,
			})
		}
		sort.SliceStable(categories, func(i, j int) bool {
			return categories[i].Sequence < categories[j].Sequence
		})
		return nil
	})
	g.Go(func() error {
		rows, err := a.queryTable(gctx, "u_time_card_codes", "u_user="+user.UserID,
			"sys_id,u_time_card_code,u_description")
		if err != nil {
			return err
		}
		for _, row := range rows {
			codes = append(codes, servicenow.TimeCode{
				SysID:       row.value("sys_id"),
				Code:        row.display("u_time_card_code"),
				Description: row.display("u_description"),
			})
		}
		sort.SliceStable(codes, func(i, j int) bool {
			if codes[i].Code != codes[j].Code {
				return naturalLess(codes[i].Code, codes[j].Code)
			}
			return naturalLess(codes[i].Description, codes[j].Description)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return servicenow.LookupSet{}, err
	}

	return servicenow.LookupSet{
		FetchedAtMs: time.Now().UnixMilli(),
		Tasks:       tasks,
		Categories:  categories,
		TimeCodes:   codes,
	}, nil
}

// weekDefaults is the parent timesheet/rate-type pair inherited by records
// created for a week the user already has entries in.
type weekDefaults struct {
	Timesheet string
	RateType  string
}

// syncTimeCards upserts one weekly time_card record per group. Submitted
// records are never touched. A not-logged-in failure aborts the remaining
// groups; every other failure is captured per group.
func (a *Agent) syncTimeCards(ctx context.Context, groups []aggregate.SyncGroup) (servicenow.SyncReport, error) {
	user, err := a.resolveUser(ctx)
	if err != nil {
		return servicenow.SyncReport{}, err
	}
	token, err := a.resolveToken(ctx)
	if err != nil {
		return servicenow.SyncReport{}, err
	}

	report := servicenow.SyncReport{}
	defaultsByWeek := map[string]weekDefaults{}

	for _, group := range groups {
		result := a.syncGroup(ctx, user, token, group, defaultsByWeek)
		report.Results = append(report.Results, result)

		if result.Code == servicenow.CodeNotLoggedIn {
			report.Aborted = true
			a.log.Warn().Str("group", result.GroupKey).Msg("session lost during sync, aborting remaining groups")
			break
		}
	}

	return report, nil
}

func groupKey(g aggregate.SyncGroup) string {
	return fmt.Sprintf("%s/%s/%s", g.WeekStart, g.SelectionKey, g.CodeSysID)
}

func (a *Agent) syncGroup(ctx context.Context, user servicenow.SessionUser, token string, g aggregate.SyncGroup, defaultsByWeek map[string]weekDefaults) servicenow.GroupResult {
	result := servicenow.GroupResult{GroupKey: groupKey(g)}

	fail := func(err error) servicenow.GroupResult {
		result.Outcome = servicenow.SyncOutcomeFailed
		result.Code = servicenow.CodeOf(err)
		result.Message = err.Error()
		result.RecoveryHint = servicenow.HintOf(err)
		return result
	}

	query := fmt.Sprintf("user=%s^week_starts_on=%s^u_time_card_code=%s", user.UserID, g.WeekStart, g.CodeSysID)
	switch g.SelectionType {
	case "task":
		query += "^task=" + g.Assignment.TaskSysID
	case "category":
		query += "^category=" + g.Assignment.CategoryValue
	}

	rows, err := a.queryTable(ctx, "time_card", query, "sys_id,state")
	if err != nil {
		return fail(err)
	}

	fields := map[string]any{
		"monday":    g.DayHours[0],
		"tuesday":   g.DayHours[1],
		"wednesday": g.DayHours[2],
		"thursday":  g.DayHours[3],
		"friday":    g.DayHours[4],
		"saturday":  g.DayHours[5],
		"sunday":    g.DayHours[6],
		"total":     g.TotalHours,
		"notes":     strings.Join(g.Comments, "\n"),
	}

	if len(rows) > 0 {
		existing := rows[0]
		if isSubmitted(existing) {
			result.Outcome = servicenow.SyncOutcomeSkipped
			result.RecordSysID = existing.value("sys_id")
			result.Code = servicenow.CodeSubmittedSkip
			result.Message = "record is submitted and will not be modified"
			return result
		}

		sysID := existing.value("sys_id")
		if _, err := a.mutate(ctx, http.MethodPatch, "/api/now/table/time_card/"+sysID, fields, token); err != nil {
			return fail(err)
		}
		result.Outcome = servicenow.SyncOutcomeUpdated
		result.RecordSysID = sysID
		return result
	}

	fields["user"] = user.UserID
	fields["week_starts_on"] = g.WeekStart
	fields["u_time_card_code"] = g.CodeSysID
	switch g.SelectionType {
	case "task":
		fields["task"] = g.Assignment.TaskSysID
		fields["category"] = "task_work"
	case "category":
		fields["category"] = g.Assignment.CategoryValue
	}

	defaults, err := a.weekDefaultsFor(ctx, user, g.WeekStart, defaultsByWeek)
	if err != nil {
		return fail(err)
	}
	if defaults.Timesheet != "" {
		fields["time_sheet"] = defaults.Timesheet
	}
	if defaults.RateType != "" {
		fields["rate_type"] = defaults.RateType
	}

	created, err := a.mutate(ctx, http.MethodPost, "/api/now/table/time_card", fields, token)
	if err != nil {
		return fail(err)
	}
	result.Outcome = servicenow.SyncOutcomeCreated
	result.RecordSysID = created.value("sys_id")
	return result
}

// weekDefaultsFor fetches the timesheet/rate-type pair of any existing
// same-week record, once per week per sync call.
func (a *Agent) weekDefaultsFor(ctx context.Context, user servicenow.SessionUser, week string, cache map[string]weekDefaults) (weekDefaults, error) {
	if d, ok := cache[week]; ok {
		return d, nil
	}

	rows, err := a.queryTable(ctx, "time_card",
		fmt.Sprintf("user=%s^week_starts_on=%s", user.UserID, week),
		"time_sheet,rate_type")
	if err != nil {
		return weekDefaults{}, err
	}

	d := weekDefaults{}
	if len(rows) > 0 {
		d.Timesheet = rows[0].value("time_sheet")
		d.RateType = rows[0].value("rate_type")
	}
	cache[week] = d
	return d, nil
}

func isSubmitted(row tableRow) bool {
	state := row.display("state")
	if state == "" {
		state = row.value("state")
	}
	return strings.EqualFold(state, servicenow.TimecardStateSubmitted)
}

// tableRow is one Table API record. With sysparm_display_value=all each
// field arrives as {display_value, value}; plain strings are accepted too.
type tableRow map[string]json.RawMessage

type rowField struct {
	DisplayValue string `json:"display_value"`
	Value        string `json:"value"`
}

func (r tableRow) field(name string) rowField {
	raw, ok := r[name]
	if !ok {
		return rowField{}
	}

	var f rowField
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return rowField{DisplayValue: s, Value: s}
	}
	return rowField{}
}

// display prefers the display value, falling back to the raw value.
func (r tableRow) display(name string) string {
	f := r.field(name)
	if f.DisplayValue != "" {
		return f.DisplayValue
	}
	return f.Value
}

// value prefers the raw value, falling back to the display value.
func (r tableRow) value(name string) string {
	f := r.field(name)
	if f.Value != "" {
		return f.Value
	}
	return f.DisplayValue
}

// queryTable reads records from the Table API.
func (a *Agent) queryTable(ctx context.Context, table, query, fields string) ([]tableRow, error) {
	params := url.Values{}
	params.Set("sysparm_query", query)
	params.Set("sysparm_fields", fields)
	params.Set("sysparm_display_value", "all")

	var body struct {
		Result []tableRow `json:"result"`
	}
	if err := a.get(ctx, "/api/now/table/"+table, params, &body); err != nil {
		return nil, err
	}
	return body.Result, nil
}

// mutate issues a write to the Table API with the CSRF token attached.
func (a *Agent) mutate(ctx context.Context, method, path string, fields map[string]any, token string) (tableRow, error) {
	var body struct {
		Result tableRow `json:"result"`
	}
	if err := a.do(ctx, method, path, nil, fields, token, &body); err != nil {
		return nil, err
	}
	return body.Result, nil
}

func (a *Agent) get(ctx context.Context, path string, params url.Values, dest any) error {
	return a.do(ctx, http.MethodGet, path, params, nil, "", dest)
}

func (a *Agent) do(ctx context.Context, method, path string, params url.Values, body any, token string, dest any) error {
	endpoint := a.base + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-UserToken", token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return servicenow.NewError(servicenow.CodeAPIError, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return servicenow.NewError(servicenow.CodeNotLoggedIn, "instance rejected the session (%s %s)", method, path).
			WithHint("Log in to your instance in the browser, then retry.")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return servicenow.NewError(servicenow.CodeAPIError, "%s %s returned status %d", method, path, resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return servicenow.NewError(servicenow.CodeAPIError, "decode %s response: %v", path, err)
	}
	return nil
}

// naturalLess compares case-insensitively, ordering embedded digit runs
// numerically so "CODE9" sorts before "CODE10".
func naturalLess(a, b string) bool {
	ar, br := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	i, j := 0, 0

	for i < len(ar) && j < len(br) {
		if unicode.IsDigit(ar[i]) && unicode.IsDigit(br[j]) {
			is, js := i, j
			for i < len(ar) && unicode.IsDigit(ar[i]) {
				i++
			}
			for j < len(br) && unicode.IsDigit(br[j]) {
				j++
			}
			an := strings.TrimLeft(string(ar[is:i]), "0")
			bn := strings.TrimLeft(string(br[js:j]), "0")
			if len(an) != len(bn) {
				return len(an) < len(bn)
			}
			if an != bn {
				return an < bn
			}
			continue
		}
		if ar[i] != br[j] {
			return ar[i] < br[j]
		}
		i++
		j++
	}
	return len(ar)-i < len(br)-j
}
