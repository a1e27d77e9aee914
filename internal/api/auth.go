package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/mr-tron/base58"

	"pat-settlement/internal/domain"
)

// Request headers.
const (
	HeaderCaller         = "X-PAT-Caller"
	HeaderTimestamp      = "X-PAT-Timestamp"
	HeaderSignature      = "X-PAT-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-ID"
	HeaderReplayed       = "Idempotent-Replayed"
)

type callerKey struct{}
type bodyKey struct{}

// SigningPayload is the message a caller signs:
// METHOD \n PATH \n TIMESTAMP \n hex(sha256(body)).
func SigningPayload(method, path string, timestamp int64, body []byte) []byte {
	sum := sha256.Sum256(body)
	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.Bytes()
}

// SignRequest sets the authentication headers on req. body must be the
// exact bytes sent.
func SignRequest(req *http.Request, key ed25519.PrivateKey, body []byte, now time.Time) {
	ts := now.Unix()
	pub := key.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(key, SigningPayload(req.Method, req.URL.Path, ts, body))
	req.Header.Set(HeaderCaller, base58.Encode(pub))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, base58.Encode(sig))
}

// CallerFrom returns the authenticated caller of a signed request.
func CallerFrom(ctx context.Context) (domain.Address, bool) {
	a, ok := ctx.Value(callerKey{}).(domain.Address)
	return a, ok
}

func bodyFrom(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyKey{}).([]byte)
	return b
}

// authenticate verifies the request signature and stores the caller and
// the raw body in the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
		if err != nil {
			s.writeError(w, r, errorsmod.Wrap(ErrBadRequest, err.Error()))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := s.verify(r, body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		ctx = context.WithValue(ctx, bodyKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) verify(r *http.Request, body []byte) (domain.Address, error) {
	rawCaller := r.Header.Get(HeaderCaller)
	rawTS := r.Header.Get(HeaderTimestamp)
	rawSig := r.Header.Get(HeaderSignature)
	if rawCaller == "" || rawTS == "" || rawSig == "" {
		return domain.ZeroAddress, errorsmod.Wrap(ErrUnauthenticated, "missing signature headers")
	}

	caller, err := domain.ParseAddress(rawCaller)
	if err != nil {
		return caller, errorsmod.Wrap(ErrUnauthenticated, err.Error())
	}
	if !caller.IsOnCurve() {
		return caller, errorsmod.Wrap(ErrUnauthenticated, "caller is not a valid public key")
	}

	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return caller, errorsmod.Wrap(ErrUnauthenticated, "malformed timestamp")
	}
	skew := s.opts.Clock().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.opts.SignatureWindow {
		return caller, errorsmod.Wrapf(ErrUnauthenticated, "timestamp outside %s window", s.opts.SignatureWindow)
	}

	sig, err := base58.Decode(rawSig)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return caller, errorsmod.Wrap(ErrUnauthenticated, "malformed signature")
	}
	if !ed25519.Verify(ed25519.PublicKey(caller[:]), SigningPayload(r.Method, r.URL.Path, ts, body), sig) {
		return caller, errorsmod.Wrap(ErrUnauthenticated, "signature mismatch")
	}
	if !s.signatures.claim(sig, time.Unix(ts, 0).Add(s.opts.SignatureWindow), s.opts.Clock()) {
		return caller, errorsmod.Wrap(ErrUnauthenticated, "signature already used")
	}
	return caller, nil
}
