package provider

// Built-in provider names.
const (
	Facebook      = "facebook"
	VKontakte     = "vkontakte"
	Odnoklassniki = "odnoklassniki"
	LinkedIn      = "linkedin"
)

// Defaults returns endpoint and field mapping defaults for the built-in
// providers. Client credentials are left empty.
func Defaults() map[string]Config {
	return map[string]Config{
		Facebook: {
			Name:        Facebook,
			AuthURL:     "https://www.facebook.com/v19.0/dialog/oauth",
			TokenURL:    "https://graph.facebook.com/v19.0/oauth/access_token",
			UserInfoURL: "https://graph.facebook.com/v19.0/me",
			Scopes:      []string{"email", "public_profile"},
			AuthStyle:   "params",
			ExtraParams: map[string]string{"fields": "id,name,email,picture.type(large)"},
			Fields: FieldMapping{
				ID:     "id",
				Email:  "email",
				Name:   "name",
				Avatar: "picture.data.url",
			},
		},
		VKontakte: {
			Name:        VKontakte,
			AuthURL:     "https://oauth.vk.com/authorize",
			TokenURL:    "https://oauth.vk.com/access_token",
			UserInfoURL: "https://api.vk.com/method/users.get",
			Scopes:      []string{"email"},
			AuthStyle:   "params",
			TokenParam:  "access_token",
			ExtraParams: map[string]string{"v": "5.131", "fields": "photo_200"},
			Fields: FieldMapping{
				Root:       "response.0",
				ID:         "id",
				TokenEmail: "email",
				FirstName:  "first_name",
				LastName:   "last_name",
				Avatar:     "photo_200",
			},
		},
		Odnoklassniki: {
			Name:         Odnoklassniki,
			AuthURL:      "https://connect.ok.ru/oauth/authorize",
			TokenURL:     "https://api.ok.ru/oauth/token.do",
			UserInfoURL:  "https://api.ok.ru/fb.do",
			Scopes:       []string{"VALUABLE_ACCESS", "GET_EMAIL"},
			AuthStyle:    "params",
			TokenParam:   "access_token",
			SignRequests: true,
			ExtraParams:  map[string]string{"method": "users.getCurrentUser", "format": "json"},
			Fields: FieldMapping{
				ID:     "uid",
				Email:  "email",
				Name:   "name",
				Avatar: "pic_3",
			},
		},
		LinkedIn: {
			Name:        LinkedIn,
			AuthURL:     "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:    "https://www.linkedin.com/oauth/v2/accessToken",
			UserInfoURL: "https://api.linkedin.com/v2/userinfo",
			Scopes:      []string{"openid", "profile", "email"},
			AuthStyle:   "params",
			Fields: FieldMapping{
				ID:     "sub",
				Email:  "email",
				Name:   "name",
				Avatar: "picture",
			},
		},
	}
}
