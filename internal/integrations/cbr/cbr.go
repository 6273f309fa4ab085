package cbr

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const soapAction = "http://web.cbr.ru/KeyRate"

// Client queries the Central Bank of Russia SOAP service for the
// current key rate. Informational only; no money-movement path depends
// on it.
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new CBR client
func NewClient(url string, log *logrus.Logger) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// GetKeyRate retrieves the latest published key rate.
func (c *Client) GetKeyRate() (float64, error) {
	body, err := c.send(c.buildRequest())
	if err != nil {
		return 0, err
	}
	rate, err := parseKeyRate(body)
	if err != nil {
		return 0, err
	}
	c.log.Infof("Retrieved key rate: %.2f%%", rate)
	return rate, nil
}

// buildRequest produces the SOAP 1.2 envelope asking for the key rate
// over the last 30 days.
func (c *Client) buildRequest() []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	envelope := doc.CreateElement("soap12:Envelope")
	envelope.CreateAttr("xmlns:soap12", "http://www.w3.org/2003/05/soap-envelope")
	keyRate := envelope.CreateElement("soap12:Body").CreateElement("KeyRate")
	keyRate.CreateAttr("xmlns", "http://web.cbr.ru/")

	now := time.Now()
	keyRate.CreateElement("fromDate").SetText(now.AddDate(0, 0, -30).Format("2006-01-02"))
	keyRate.CreateElement("ToDate").SetText(now.Format("2006-01-02"))

	out, _ := doc.WriteToBytes()
	return out
}

func (c *Client) send(soapRequest []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debugf("CBR XML response: %s", body)
	return body, nil
}

// parseKeyRate extracts the most recent rate from the diffgram payload.
func parseKeyRate(rawBody []byte) (float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return 0, fmt.Errorf("failed to parse XML: %w", err)
	}

	entries := doc.FindElements("//diffgram/KeyRate/KR")
	if len(entries) == 0 {
		return 0, fmt.Errorf("no key rate data found")
	}
	rateElement := entries[0].FindElement("./Rate")
	if rateElement == nil {
		return 0, fmt.Errorf("rate element not found")
	}

	rate, err := strconv.ParseFloat(rateElement.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse rate %q: %w", rateElement.Text(), err)
	}
	return rate, nil
}
