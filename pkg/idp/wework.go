package idp

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultWeWorkAPI   = "https://qyapi.weixin.qq.com"
	DefaultWeWorkLogin = "https://open.work.weixin.qq.com/wwopen/sso/qrConnect"
)

// weworkStatusActive is the "status" value of an activated member.
const weworkStatusActive = 1

type WeWorkConfig struct {
	CorpID  string
	AgentID string
	Secret  string

	BaseURL  string
	LoginURL string
}

// WeWork exchanges scan codes through the WeCom (WeWork) server API.
type WeWork struct {
	cfg WeWorkConfig
	api *apiClient
}

func NewWeWork(cfg WeWorkConfig, hc *http.Client) *WeWork {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWeWorkAPI
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultWeWorkLogin
	}
	return &WeWork{cfg: cfg, api: newAPIClient(ProviderWeWork, cfg.BaseURL, hc)}
}

func (w *WeWork) Name() string { return ProviderWeWork }

func (w *WeWork) LoginParams(redirectURI, state string) LoginParams {
	q := url.Values{}
	q.Set("appid", w.cfg.CorpID)
	q.Set("agentid", w.cfg.AgentID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return LoginParams{
		Provider:     ProviderWeWork,
		AppID:        w.cfg.CorpID,
		AgentID:      w.cfg.AgentID,
		RedirectURI:  redirectURI,
		State:        state,
		AuthorizeURL: w.cfg.LoginURL + "?" + q.Encode(),
	}
}

type weworkTokenResponse struct {
	apiResponse
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type weworkUserInfoResponse struct {
	apiResponse
	UserID string `json:"userid"`
	OpenID string `json:"openid"`
}

type weworkUserResponse struct {
	apiResponse
	UserID  string `json:"userid"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	BizMail string `json:"biz_mail"`
	Status  int    `json:"status"`
}

func (w *WeWork) fetchToken(ctx context.Context) (string, time.Duration, error) {
	q := url.Values{}
	q.Set("corpid", w.cfg.CorpID)
	q.Set("corpsecret", w.cfg.Secret)

	var out weworkTokenResponse
	if err := w.api.call(ctx, "gettoken", http.MethodGet, "/cgi-bin/gettoken", q, nil, &out); err != nil {
		return "", 0, err
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

// ExchangeCode resolves the scan code to a member userid and reads the
// member record.
func (w *WeWork) ExchangeCode(ctx context.Context, code string) (Profile, error) {
	if code == "" {
		return Profile{}, w.api.fail("getuserinfo", errors.New("empty code"))
	}

	token, err := w.api.accessToken(ctx, w.fetchToken)
	if err != nil {
		return Profile{}, err
	}

	q := url.Values{}
	q.Set("access_token", token)
	q.Set("code", code)
	var info weworkUserInfoResponse
	if err := w.api.call(ctx, "getuserinfo", http.MethodGet, "/cgi-bin/auth/getuserinfo", q, nil, &info); err != nil {
		return Profile{}, err
	}
	if info.UserID == "" {
		return Profile{}, &Error{Provider: ProviderWeWork, Op: "getuserinfo", Message: "user is not a member of the organisation"}
	}

	q = url.Values{}
	q.Set("access_token", token)
	q.Set("userid", info.UserID)
	var user weworkUserResponse
	if err := w.api.call(ctx, "user_get", http.MethodGet, "/cgi-bin/user/get", q, nil, &user); err != nil {
		return Profile{}, err
	}

	return Profile{
		UserID:  user.UserID,
		Name:    user.Name,
		Email:   user.Email,
		BizMail: user.BizMail,
		Active:  user.Status == weworkStatusActive,
	}, nil
}
