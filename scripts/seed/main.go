// Command seed loads demo categories, templates and patients through the API.
//
// Usage:
//
//	API_URL=http://localhost:8080 ADMIN_JWT_SECRET=... go run ./scripts/seed testdata/seed.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/internal/crmclient"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

type seedTemplate struct {
	templates.TemplateInput
	Category string `json:"category"`
}

type seedFile struct {
	Categories []templates.CategoryInput `json:"categories"`
	Templates  []seedTemplate            `json:"templates"`
	Patients   []patients.CreateRequest  `json:"patients"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed <seed-file.json>")
		os.Exit(1)
	}
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	logger := logging.New("info")

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read seed file", "error", err)
		os.Exit(1)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		logger.Error("parse seed file", "error", err)
		os.Exit(1)
	}

	token, err := operatorToken(os.Getenv("ADMIN_JWT_SECRET"))
	if err != nil {
		logger.Error("sign operator token", "error", err)
		os.Exit(1)
	}
	client := crmclient.New(apiURL, crmclient.Options{Token: token, Timeout: 30 * time.Second, Logger: logger})
	ctx := context.Background()

	categoryIDs := map[string]string{}
	existing, err := client.ListCategories(ctx)
	if err != nil {
		logger.Error("list categories", "error", err)
		os.Exit(1)
	}
	for _, c := range existing {
		categoryIDs[c.Name] = c.ID
	}
	for _, in := range seed.Categories {
		c, err := client.CreateCategory(ctx, in)
		switch {
		case errors.Is(err, crmclient.ErrConflict):
			logger.Info("category exists", "name", in.Name)
			continue
		case err != nil:
			logger.Error("create category", "name", in.Name, "error", err)
			os.Exit(1)
		}
		categoryIDs[c.Name] = c.ID
	}

	for _, st := range seed.Templates {
		in := st.TemplateInput
		if st.Category != "" {
			in.CategoryID = categoryIDs[strings.ToLower(st.Category)]
		}
		if _, err := client.CreateTemplate(ctx, in); err != nil {
			logger.Error("create template", "title", in.Title, "error", err)
			os.Exit(1)
		}
	}

	created := 0
	for _, req := range seed.Patients {
		_, err := client.CreatePatient(ctx, req)
		switch {
		case errors.Is(err, crmclient.ErrConflict):
			logger.Info("patient exists", "phone", req.Phone)
		case err != nil:
			logger.Error("create patient", "name", req.Name, "error", err)
			os.Exit(1)
		default:
			created++
		}
	}

	logger.Info("seed complete",
		"categories", len(seed.Categories),
		"templates", len(seed.Templates),
		"patients", created,
	)
}

// operatorToken mints a short-lived HS256 token for the seeding operator.
func operatorToken(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  "seed",
		"name": "seed",
		"iat":  now.Unix(),
		"exp":  now.Add(15 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
