// Command pricebars-server exposes the pricebars retrieval engine over a
// small JSON API, for callers that prefer an HTTP boundary over linking
// the library directly.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"pricebars/internal/config"
	"pricebars/internal/domain"
	"pricebars/pkg/pricebars"
)

func main() {
	cfgPath := "config/pricebars.yaml"
	if p := os.Getenv("PRICEBARS_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client, err := pricebars.New(cfg)
	if err != nil {
		slog.Error("failed to initialize pricebars client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	addr := ":8080"
	if a := os.Getenv("PRICEBARS_LISTEN"); a != "" {
		addr = a
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/prices", handleGetPrices(client))

	slog.Info("pricebars-server starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// handleGetPrices serves GET /api/v1/prices?symbol=SPY&start=2024-01-02&end=2024-01-05&provider=AUTO&refresh=false
func handleGetPrices(client *pricebars.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		query := r.URL.Query()
		symbol := query.Get("symbol")
		start, err := time.Parse("2006-01-02", query.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date: "+err.Error())
			return
		}
		end, err := time.Parse("2006-01-02", query.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date: "+err.Error())
			return
		}
		selection := domain.Selection(query.Get("provider"))
		if selection == "" {
			selection = domain.SelectAuto
		}
		refresh := query.Get("refresh") == "true"

		result, err := client.GetPrices(r.Context(), symbol, start, end, selection, refresh)
		if err != nil {
			writeFailure(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if encodeErr := json.NewEncoder(w).Encode(result); encodeErr != nil {
			slog.Error("encoding get-prices response", "error", encodeErr)
		}
	}
}

// writeFailure maps the core's typed error taxonomy onto HTTP status
// codes without leaking credential values into the response body (the
// error types already carry redacted messages).
func writeFailure(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *domain.InvalidInputError:
		writeError(w, http.StatusBadRequest, err.Error())
	case *domain.CredentialMissingError, *domain.CredentialStaleError:
		writeError(w, http.StatusUnauthorized, err.Error())
	case *domain.ProviderFailureError, *domain.ParseFailureError:
		writeError(w, http.StatusBadGateway, err.Error())
	case *domain.StoreCorruptionError:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
