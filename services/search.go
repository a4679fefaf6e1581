package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gitpress/models"
	"gitpress/repository"
)

// securityTermSynonyms maps a canonical search token to every spelling the
// normalizer folds into it. The inverse lookup is built once at init.
var securityTermSynonyms = map[string][]string{
	"oauth":   {"oauth", "oauth2", "oauth 2.0", "oauth2.0"},
	"openid":  {"openid", "openid connect", "oidc"},
	"jwt":     {"jwt", "json web token", "jsonwebtoken"},
	"pkce":    {"pkce", "proof key for code exchange"},
	"saml":    {"saml", "saml2", "saml 2.0"},
	"sso":     {"sso", "single sign on", "single sign-on", "シングルサインオン"},
	"mfa":     {"mfa", "multi factor", "multi-factor", "多要素認証", "2fa", "二要素認証", "totp", "hotp"},
	"passkey": {"passkey", "パスキー", "webauthn", "fido2", "fido"},
	"session": {"session", "セッション"},
	"cookie":  {"cookie", "cookies", "クッキー"},
	"token":   {"token", "トークン", "access token", "アクセストークン", "refresh token", "リフレッシュトークン"},

	"rbac":       {"rbac", "role based access control", "ロールベースアクセス制御"},
	"abac":       {"abac", "attribute based access control", "属性ベースアクセス制御"},
	"acl":        {"acl", "access control list", "アクセス制御リスト"},
	"permission": {"permission", "permissions", "パーミッション", "権限"},
	"scope":      {"scope", "scopes", "スコープ"},

	"xss":       {"xss", "cross site scripting", "クロスサイトスクリプティング"},
	"csrf":      {"csrf", "cross site request forgery", "xsrf", "クロスサイトリクエストフォージェリ"},
	"sqli":      {"sqli", "sql injection", "sqlインジェクション", "sql インジェクション"},
	"injection": {"injection", "インジェクション"},
	"owasp":     {"owasp", "オワスプ"},

	"encryption": {"encryption", "暗号化", "暗号"},
	"hashing":    {"hashing", "hash", "ハッシュ", "ハッシュ化"},
	"bcrypt":     {"bcrypt", "ビークリプト"},
	"argon2":     {"argon2", "argon 2", "アルゴン2"},
	"sha256":     {"sha256", "sha-256", "sha 256"},
	"aes":        {"aes", "aes256", "aes-256"},
	"rsa":        {"rsa", "rsa暗号"},

	"https": {"https", "tls", "ssl", "tls/ssl"},
	"cors":  {"cors", "cross origin", "クロスオリジン"},
	"csp":   {"csp", "content security policy", "コンテンツセキュリティポリシー"},
	"hsts":  {"hsts", "http strict transport security"},

	"auth0":         {"auth0", "オースゼロ"},
	"okta":          {"okta", "オクタ"},
	"cognito":       {"cognito", "amazon cognito", "aws cognito"},
	"firebase_auth": {"firebase auth", "firebase authentication", "firebase認証"},
	"keycloak":      {"keycloak", "キークローク"},

	"認証":     {"認証", "authentication", "authn"},
	"認可":     {"認可", "authorization", "authz"},
	"ログイン":   {"ログイン", "login", "サインイン", "sign in", "signin"},
	"ログアウト":  {"ログアウト", "logout", "サインアウト", "sign out", "signout"},
	"パスワード":  {"パスワード", "password", "パスワードレス", "passwordless"},
	"セキュリティ": {"セキュリティ", "security"},
}

var synonymToCanonical = map[string]string{}

func init() {
	for canonical, synonyms := range securityTermSynonyms {
		for _, synonym := range synonyms {
			synonymToCanonical[strings.ToLower(synonym)] = canonical
		}
	}
}

// NormalizeSearchTerm folds a single token onto its canonical form. Only
// exact table hits are folded; partial matches would normalize terms the
// author never meant.
func NormalizeSearchTerm(term string) string {
	lower := strings.ToLower(strings.TrimSpace(term))
	if canonical, ok := synonymToCanonical[lower]; ok {
		return canonical
	}
	return lower
}

// HashtagInfo classifies a query as topic search.
type HashtagInfo struct {
	IsHashtagSearch bool
	Topics          []string
}

// NormalizedQuery is the search input after tokenization and synonym
// folding.
type NormalizedQuery struct {
	Original     string
	Tokens       []string
	AndQuery     string
	OrQuery      string
	IsMultiToken bool
	Hashtag      HashtagInfo
}

var queryStripper = strings.NewReplacer("*", "", ":", "", "^", "")

// NormalizeQuery tokenizes and normalizes a raw search query. Full-text
// match operators are stripped first so user input can never alter query
// semantics.
func NormalizeQuery(raw string) NormalizedQuery {
	safe, _, err := transform.String(norm.NFKC, queryStripper.Replace(raw))
	if err != nil {
		safe = queryStripper.Replace(raw)
	}
	tokens := strings.Fields(strings.ReplaceAll(safe, "　", " "))

	hashtag := HashtagInfo{Topics: []string{}}
	normalized := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if rest, ok := strings.CutPrefix(token, "#"); ok {
			hashtag.IsHashtagSearch = true
			if rest != "" {
				hashtag.Topics = append(hashtag.Topics, strings.ToLower(rest))
			}
			continue
		}
		normalized = append(normalized, NormalizeSearchTerm(token))
	}

	return NormalizedQuery{
		Original:     raw,
		Tokens:       normalized,
		AndQuery:     strings.Join(normalized, " "),
		OrQuery:      strings.Join(normalized, " OR "),
		IsMultiToken: len(normalized) > 1,
		Hashtag:      hashtag,
	}
}

// andExcludeCap bounds how many AND-matching ids the OR backfill excludes.
const andExcludeCap = 1000

// SearchResult is one paginated page plus the combined totals.
type SearchResult struct {
	Items   []models.Article
	Total   int64
	Page    int
	Limit   int
	HasMore bool
}

// SearchService runs the three search strategies against the full-text
// index: hashtag queries hit the topic index, single-token queries run the
// AND path only, and multi-token queries run AND first with OR backfill.
type SearchService struct {
	Index  repository.SearchStore
	Logger *zap.Logger
}

func NewSearchService(search repository.SearchStore, logger *zap.Logger) *SearchService {
	return &SearchService{Index: search, Logger: logger}
}

func (s *SearchService) Search(ctx context.Context, rawQuery string, page, limit int) (*SearchResult, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	q := NormalizeQuery(rawQuery)

	if q.Hashtag.IsHashtagSearch {
		return s.searchTopics(ctx, q.Hashtag.Topics, page, limit, offset)
	}
	if len(q.Tokens) == 0 {
		return &SearchResult{Items: []models.Article{}, Page: page, Limit: limit}, nil
	}
	if !q.IsMultiToken {
		return s.searchAndOnly(ctx, q.Tokens, page, limit, offset)
	}
	return s.searchAndThenOr(ctx, q.Tokens, page, limit, offset)
}

func (s *SearchService) searchTopics(ctx context.Context, topics []string, page, limit, offset int) (*SearchResult, error) {
	if len(topics) == 0 {
		return &SearchResult{Items: []models.Article{}, Page: page, Limit: limit}, nil
	}
	items, err := s.Index.SearchByTopics(ctx, topics, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.Index.CountByTopics(ctx, topics)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Items:   items,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: int64(offset+len(items)) < total,
	}, nil
}

func (s *SearchService) searchAndOnly(ctx context.Context, tokens []string, page, limit, offset int) (*SearchResult, error) {
	items, err := s.Index.SearchAnd(ctx, tokens, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.Index.CountAnd(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Items:   items,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: int64(offset+len(items)) < total,
	}, nil
}

// searchAndThenOr pages through the AND results first and backfills the
// remainder of the page from the OR results. Every article the AND query
// can return is excluded from the OR query wholesale, so an article
// matching all tokens never ranks below one matching only some.
func (s *SearchService) searchAndThenOr(ctx context.Context, tokens []string, page, limit, offset int) (*SearchResult, error) {
	andTotal, err := s.Index.CountAnd(ctx, tokens)
	if err != nil {
		return nil, err
	}

	var items []models.Article
	if int64(offset) < andTotal {
		items, err = s.Index.SearchAnd(ctx, tokens, limit, offset)
		if err != nil {
			return nil, err
		}
	}

	excludeIDs, err := s.Index.AndMatchIDs(ctx, tokens, andExcludeCap)
	if err != nil {
		return nil, err
	}
	orTotal, err := s.Index.CountOr(ctx, tokens, excludeIDs)
	if err != nil {
		return nil, err
	}

	if len(items) < limit {
		orOffset := offset + len(items) - int(andTotal)
		if orOffset < 0 {
			orOffset = 0
		}
		orItems, err := s.Index.SearchOr(ctx, tokens, excludeIDs, limit-len(items), orOffset)
		if err != nil {
			return nil, err
		}
		items = append(items, orItems...)
	}

	total := andTotal + orTotal
	return &SearchResult{
		Items:   items,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: int64(offset+len(items)) < total,
	}, nil
}
