package common

// AuthHeaderName is the HTTP header the client uses to attach its access
// token and the server reads it from.
const AuthHeaderName = "Authorization"

// AuthScheme is the expected prefix of the auth header value.
const AuthScheme = "Bearer"
