package signature

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/rest"
)

const orderLifetime = 7 * 24 * time.Hour

// Key is the wallet key orders and requests are signed with.
type Key struct {
	private ed25519.PrivateKey
	public  string
}

// ParseKey accepts a hex encoded 32 byte seed, with or without 0x.
func ParseKey(seedHex string) (*Key, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(seedHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("signature.ParseKey: %w: %w", exchangeErrors.ErrNoCredentials, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signature.ParseKey: %w: seed must be %d bytes", exchangeErrors.ErrNoCredentials, ed25519.SeedSize)
	}

	private := ed25519.NewKeyFromSeed(seed)
	clear(seed)

	return &Key{
		private: private,
		public:  hex.EncodeToString(private.Public().(ed25519.PublicKey)),
	}, nil
}

func (k *Key) PublicKey() string {
	return k.public
}

// SignRequest has the transport.RequestSigner shape.
func (k *Key) SignRequest(request *resty.Request, method, path string, body []byte) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	digest := sha256.New()
	digest.Write([]byte(timestamp + method + path))
	digest.Write(body)

	request.SetHeader("X-PUBLIC-KEY", k.public)
	request.SetHeader("X-TIMESTAMP", timestamp)
	request.SetHeader("X-SIGNATURE", hex.EncodeToString(ed25519.Sign(k.private, digest.Sum(nil))))
}

func (k *Key) Wipe() {
	clear(k.private)
}

// Client is the wallet variant: every order is signed locally in three
// steps before it is posted.
type Client struct {
	*rest.API
	key *Key
	now func() time.Time
}

func New(api *rest.API, key *Key) *Client {
	return &Client{API: api, key: key, now: time.Now}
}

// GetMarketPrice quotes the best ask, falling back to the mark price when
// the book is empty.
func (c *Client) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	const op = "signature.Client.GetMarketPrice"

	book, err := c.GetOrderbook(ctx, symbol)
	if err == nil && len(book.Asks) > 0 && book.Asks[0].Price.IsPositive() {
		return book.Asks[0].Price, nil
	}

	price, err := c.API.GetMarketPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return price, nil
}

func (c *Client) CreateOrderSignatureRequest(_ context.Context, params models.OrderParams) (exchange.SignatureRequest, error) {
	if params.Symbol == "" || !params.Side.Valid() || !params.Quantity.IsPositive() {
		return exchange.SignatureRequest{}, fmt.Errorf("signature.Client.CreateOrderSignatureRequest: %w: incomplete order", exchangeErrors.ErrRejected)
	}

	request := exchange.SignatureRequest{
		Params:     params,
		Salt:       uuid.NewString(),
		Expiration: c.now().Add(orderLifetime).UnixMilli(),
	}
	request.Digest = Digest(request)

	return request, nil
}

func (c *Client) CreateSignedOrder(_ context.Context, request exchange.SignatureRequest) (exchange.SignedOrder, error) {
	if len(request.Digest) == 0 {
		request.Digest = Digest(request)
	}

	return exchange.SignedOrder{
		Request:   request,
		Signature: hex.EncodeToString(ed25519.Sign(c.key.private, request.Digest)),
	}, nil
}

func (c *Client) PostSignedOrder(ctx context.Context, signed exchange.SignedOrder) (models.OrderAck, error) {
	const op = "signature.Client.PostSignedOrder"

	body := rest.NewOrderRequest(signed.Request.Params)
	body.Salt = signed.Request.Salt
	body.Expiration = signed.Request.Expiration
	body.Signature = signed.Signature

	ack, err := c.PostOrder(ctx, body)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}
	return ack, nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.OrderAck, error) {
	const op = "signature.Client.ClosePosition"

	params, err := rest.ClosingOrder(ctx, c, symbol, quantity)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}

	ack, err := exchange.Resolve(c).Submit(ctx, params)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}
	return ack, nil
}

func (c *Client) Close() error {
	c.key.Wipe()
	return nil
}

// Digest is the sha256 of the canonical order fields.
func Digest(request exchange.SignatureRequest) []byte {
	params := request.Params
	canonical := strings.Join([]string{
		params.Symbol,
		string(params.Side),
		string(params.Type),
		params.Quantity.String(),
		params.Price.String(),
		strconv.Itoa(params.Leverage),
		strconv.FormatBool(params.ReduceOnly),
		request.Salt,
		strconv.FormatInt(request.Expiration, 10),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return sum[:]
}
