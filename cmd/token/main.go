// Command token issues a bearer token for the mutating catalog routes,
// signed with the service's JWT_SIGNING_KEY.
//
//	token -email ops@example.com [-user-id N] [-role admin]
package main

import (
	"flag"
	"fmt"

	"catalog-service/pkg/config"
	"catalog-service/pkg/jwtutil"
	"catalog-service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	email := flag.String("email", "", "email recorded in the token")
	userID := flag.Uint("user-id", 1, "user id recorded in the token")
	role := flag.String("role", "admin", "role recorded in the token")
	flag.Parse()

	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	if *email == "" {
		log.Fatal("An -email is required")
	}

	token, err := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      appConfig.JWT.SigningKey,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	}).GenerateToken(*email, uint(*userID), *role)
	if err != nil {
		log.Fatal("Failed to generate token", zap.Error(err))
	}

	fmt.Println(token)
	log.Info("Token issued",
		zap.String("email", *email),
		zap.Uint("user_id", uint(*userID)),
		zap.Int("expires_in_hours", appConfig.JWT.ExpirationHours))
}
