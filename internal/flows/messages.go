package flows

// User-facing messages of business Results.
const (
	MsgUnknownProvider        = "unknown provider '%s'"
	MsgPrincipalNoProvider    = "access token carries no provider claim"
	MsgPrincipalNoSubject     = "access token carries no subject"
	MsgNoClaims               = "no claims are stored for this user"
	MsgInvalidSignInRequest   = "invalid sign-in request"
	MsgStateMismatch          = "sign-in state does not match provider '%s'"
	MsgProviderSignInFailed   = "sign-in with '%s' failed"
	MsgProviderSignInDenied   = "sign-in with '%s' was not completed"
	MsgEmailRequired          = "'%s' did not share an email address; allow access to your email and sign in again"
	MsgInvalidEmail           = "the email address shared by the provider cannot receive mail"
	MsgInvalidConfirmRequest  = "invalid confirmation request"
	MsgSignInSessionExpired   = "sign-in session expired or does not exist; sign in again"
	MsgTooManyAttempts        = "too many confirmation attempts; sign in again later"
	MsgInvalidConfirmCode     = "invalid confirmation code"
	MsgNoAttemptsLeft         = "no attempts left"
	MsgLoginLinkedToOtherUser = "this external account is already linked to another user"
)
