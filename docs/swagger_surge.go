package docs

// @title           Surge Pricing Engine API
// @version         1.0
// @description     Zone-based dynamic pricing engine. Manages pricing zones, surge rules, surge event lifecycle, manual operator overrides, global settings and surge analytics. Live zone state is streamed over WebSocket.

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
