package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/shared"
)

// VendorStockItem is one listing entry from the vendor stock API
type VendorStockItem struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Sector      string          `json:"sector"`
	Price       decimal.Decimal `json:"price"`
	Change      decimal.Decimal `json:"change"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

type vendorListingData struct {
	Items     []VendorStockItem `json:"items"`
	NextToken string            `json:"nextToken,omitempty"`
}

type vendorListingResponse struct {
	Status int               `json:"status"`
	Data   vendorListingData `json:"data"`
}

// VendorOrder is the vendor's confirmation of a buy order
type VendorOrder struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
}

type vendorBuyRequest struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

type vendorBuyResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Order VendorOrder `json:"order"`
	} `json:"data"`
}

// VendorClientConfig holds vendor API client configuration
type VendorClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	MaxPages   int
	// MinRequestInterval spaces out requests to the vendor; zero disables
	// pacing
	MinRequestInterval time.Duration
}

// VendorClient talks to the external vendor stock API. Listing fetches
// paginate with an opaque continuation token, bounded by MaxPages so a
// source that never signals completion still terminates.
type VendorClient struct {
	config     VendorClientConfig
	httpClient *http.Client
	pacer      *shared.RequestPacer
}

// NewVendorClient creates a vendor API client with a pooled HTTP transport
func NewVendorClient(config VendorClientConfig) *VendorClient {
	if config.MaxPages <= 0 {
		config.MaxPages = 20
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &VendorClient{
		config: config,
		pacer:  shared.NewRequestPacer(config.MinRequestInterval),
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

// FetchAllListings fetches the full stock listing, following nextToken
// until the source is exhausted or the page limit is reached
func (vc *VendorClient) FetchAllListings(ctx context.Context) ([]VendorStockItem, error) {
	logrus.Debug("Fetching all stock listings from vendor API")

	var allItems []VendorStockItem
	nextToken := ""
	page := 0

	for {
		listingURL := vc.config.BaseURL + "/stocks"
		if nextToken != "" {
			listingURL += "?nextToken=" + url.QueryEscape(nextToken)
		}
		logrus.Debugf("Fetching page %d from vendor API: %s", page+1, listingURL)

		var response vendorListingResponse
		if err := vc.doJSON(ctx, http.MethodGet, listingURL, nil, &response); err != nil {
			return nil, shared.WrapError(err, shared.ErrorCategoryNetwork, "VENDOR_FETCH_FAILED", "vendor-client", "fetch_listings", true)
		}

		allItems = append(allItems, response.Data.Items...)
		nextToken = response.Data.NextToken
		page++

		if nextToken == "" {
			break
		}
		if page >= vc.config.MaxPages {
			logrus.Warn("Reached max pagination limit while fetching stock listings")
			break
		}
	}

	logrus.Infof("Fetched total %d stocks from vendor API (%d pages)", len(allItems), page)
	return allItems, nil
}

// ExecuteBuy places a buy order with the vendor. Any vendor rejection or
// transport failure surfaces as an error; the purchase workflow maps it to
// a FAILED transaction outcome.
func (vc *VendorClient) ExecuteBuy(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (*VendorOrder, error) {
	buyURL := vc.config.BaseURL + "/stocks/" + url.PathEscape(symbol) + "/buy"
	request := vendorBuyRequest{Price: price, Quantity: quantity}

	var response vendorBuyResponse
	if err := vc.doJSON(ctx, http.MethodPost, buyURL, request, &response); err != nil {
		logrus.Errorf("Failed to buy stock %s: %v", symbol, err)
		return nil, err
	}

	logrus.Infof("Buy order placed: %s x%d @ %s", response.Data.Order.Symbol, response.Data.Order.Quantity, response.Data.Order.Price)
	return &response.Data.Order, nil
}

// doJSON executes one JSON request with exponential-backoff retry on
// transport errors and 5xx responses. 4xx responses are permanent.
func (vc *VendorClient) doJSON(ctx context.Context, method, requestURL string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	operation := func() error {
		if err := vc.pacer.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		request, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		request.Header.Set("Content-Type", "application/json")
		if vc.config.APIKey != "" {
			request.Header.Set("x-api-key", vc.config.APIKey)
		}

		response, err := vc.httpClient.Do(request)
		if err != nil {
			logrus.WithError(err).Debugf("Vendor API request failed: %s %s", method, requestURL)
			return err
		}
		defer response.Body.Close()

		if response.StatusCode >= 500 {
			return fmt.Errorf("vendor API returned HTTP %d: %s", response.StatusCode, http.StatusText(response.StatusCode))
		}
		if response.StatusCode >= 400 {
			responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
			return backoff.Permanent(shared.NewValidationError(
				"VENDOR_REJECTED",
				fmt.Sprintf("vendor API returned HTTP %d: %s", response.StatusCode, string(responseBody)),
				"vendor-client", method+" "+requestURL,
			))
		}

		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode vendor response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(vc.config.MaxRetries)),
		ctx,
	)
	return backoff.Retry(operation, policy)
}
