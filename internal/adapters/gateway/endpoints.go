package gateway

import "net/http"

type apiBase int

const (
	accountAPI apiBase = iota
	subscriptionAPI
)

// authScheme is the Authorization header convention of one endpoint. The
// account service is not consistent here and the two forms are not
// interchangeable.
type authScheme int

const (
	authNone authScheme = iota
	// authRaw sends the bare token.
	authRaw
	// authBearer sends "Bearer <token>".
	authBearer
	// authBearerOptional sends "Bearer <token>" when a token exists and
	// still issues the call when it does not.
	authBearerOptional
)

type endpoint struct {
	name       string
	method     string
	base       apiBase
	path       string
	auth       authScheme
	defaultErr string
}

var (
	endpointSignup = endpoint{name: "signup", method: http.MethodPost, base: accountAPI, path: "/auth/signup", auth: authNone, defaultErr: "Signup failed"}
	endpointLogin  = endpoint{name: "login", method: http.MethodPost, base: accountAPI, path: "/auth/login", auth: authNone, defaultErr: "Login failed"}
	endpointMe     = endpoint{name: "get_me", method: http.MethodGet, base: accountAPI, path: "/auth/me", auth: authRaw, defaultErr: "Failed to get user info"}

	endpointBusiness       = endpoint{name: "get_business", method: http.MethodGet, base: accountAPI, path: "/businesses", auth: authBearer, defaultErr: "Failed to get business info"}
	endpointLocations      = endpoint{name: "list_locations", method: http.MethodGet, base: accountAPI, path: "/location/list-locations", auth: authBearer, defaultErr: "Failed to get locations"}
	endpointUpdateBusiness = endpoint{name: "update_business", method: http.MethodPatch, base: accountAPI, path: "/businesses/update", auth: authBearer, defaultErr: "Failed to update business"}
	endpointRevoke         = endpoint{name: "revoke_connection", method: http.MethodPost, base: accountAPI, path: "/auth/revoke", auth: authBearer, defaultErr: "Failed to revoke Square connection"}
	endpointTokenExchange  = endpoint{name: "exchange_code", method: http.MethodPost, base: accountAPI, path: "/auth/token", auth: authBearerOptional, defaultErr: "Failed to send OAuth data"}

	endpointSubscriptionData = endpoint{name: "list_subscription_data", method: http.MethodGet, base: subscriptionAPI, path: "/client/subscription/subscription-variation", auth: authRaw, defaultErr: "Failed to get subscription plan variations"}
	endpointCreatePlan       = endpoint{name: "create_plan", method: http.MethodPost, base: subscriptionAPI, path: "/subscription/subscription-plan/create", auth: authRaw, defaultErr: "Failed to create subscription plan"}
	endpointCreateVariation  = endpoint{name: "create_plan_variation", method: http.MethodPost, base: subscriptionAPI, path: "/subscription/plan_variation/create", auth: authRaw, defaultErr: "Failed to create plan variation"}
)
