package idp

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/pwdself/pkg/cryptox"
)

const (
	DefaultDingTalkAPI   = "https://oapi.dingtalk.com"
	DefaultDingTalkLogin = "https://oapi.dingtalk.com/connect/qrconnect"
)

type DingTalkConfig struct {
	CorpID    string
	AppKey    string
	AppSecret string

	// LoginAppID and LoginAppSecret belong to the scan-login app, which is
	// separate from the internal app that reads the contact book.
	LoginAppID     string
	LoginAppSecret string

	BaseURL  string
	LoginURL string
}

// DingTalk exchanges scan codes through the DingTalk open platform.
type DingTalk struct {
	cfg DingTalkConfig
	api *apiClient
}

func NewDingTalk(cfg DingTalkConfig, hc *http.Client) *DingTalk {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDingTalkAPI
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultDingTalkLogin
	}
	return &DingTalk{cfg: cfg, api: newAPIClient(ProviderDingTalk, cfg.BaseURL, hc)}
}

func (d *DingTalk) Name() string { return ProviderDingTalk }

func (d *DingTalk) LoginParams(redirectURI, state string) LoginParams {
	q := url.Values{}
	q.Set("appid", d.cfg.LoginAppID)
	q.Set("response_type", "code")
	q.Set("scope", "snsapi_login")
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	return LoginParams{
		Provider:     ProviderDingTalk,
		AppID:        d.cfg.LoginAppID,
		RedirectURI:  redirectURI,
		State:        state,
		AuthorizeURL: d.cfg.LoginURL + "?" + q.Encode(),
	}
}

type dingTokenResponse struct {
	apiResponse
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type dingSNSUserResponse struct {
	apiResponse
	UserInfo struct {
		Nick    string `json:"nick"`
		UnionID string `json:"unionid"`
		OpenID  string `json:"openid"`
	} `json:"user_info"`
}

type dingUnionIDResponse struct {
	apiResponse
	Result struct {
		UserID string `json:"userid"`
	} `json:"result"`
}

type dingUserResponse struct {
	apiResponse
	Result struct {
		UserID   string `json:"userid"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		OrgEmail string `json:"org_email"`
		Active   bool   `json:"active"`
	} `json:"result"`
}

func (d *DingTalk) fetchToken(ctx context.Context) (string, time.Duration, error) {
	q := url.Values{}
	q.Set("appkey", d.cfg.AppKey)
	q.Set("appsecret", d.cfg.AppSecret)

	var out dingTokenResponse
	if err := d.api.call(ctx, "gettoken", http.MethodGet, "/gettoken", q, nil, &out); err != nil {
		return "", 0, err
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

// ExchangeCode resolves the scan code to the user's unionid, then to the
// corporate userid and finally to the contact record.
func (d *DingTalk) ExchangeCode(ctx context.Context, code string) (Profile, error) {
	if code == "" {
		return Profile{}, d.api.fail("getuserinfo_bycode", errors.New("empty code"))
	}

	ts := strconv.FormatInt(d.api.now().UnixMilli(), 10)
	q := url.Values{}
	q.Set("accessKey", d.cfg.LoginAppID)
	q.Set("timestamp", ts)
	q.Set("signature", cryptox.SignHMACSHA256(d.cfg.LoginAppSecret, ts))

	var sns dingSNSUserResponse
	if err := d.api.call(ctx, "getuserinfo_bycode", http.MethodPost, "/sns/getuserinfo_bycode", q,
		map[string]string{"tmp_auth_code": code}, &sns); err != nil {
		return Profile{}, err
	}
	if sns.UserInfo.UnionID == "" {
		return Profile{}, d.api.fail("getuserinfo_bycode", errors.New("response carries no unionid"))
	}

	token, err := d.api.accessToken(ctx, d.fetchToken)
	if err != nil {
		return Profile{}, err
	}
	auth := url.Values{}
	auth.Set("access_token", token)

	var union dingUnionIDResponse
	if err := d.api.call(ctx, "getbyunionid", http.MethodPost, "/topapi/user/getbyunionid", auth,
		map[string]string{"unionid": sns.UserInfo.UnionID}, &union); err != nil {
		return Profile{}, err
	}
	if union.Result.UserID == "" {
		return Profile{}, &Error{Provider: ProviderDingTalk, Op: "getbyunionid", Message: "user is not a member of the organisation"}
	}

	var user dingUserResponse
	if err := d.api.call(ctx, "user_get", http.MethodPost, "/topapi/v2/user/get", auth,
		map[string]string{"userid": union.Result.UserID, "language": "en_US"}, &user); err != nil {
		return Profile{}, err
	}

	return Profile{
		UserID:  user.Result.UserID,
		Name:    user.Result.Name,
		Email:   user.Result.Email,
		BizMail: user.Result.OrgEmail,
		Active:  user.Result.Active,
	}, nil
}
