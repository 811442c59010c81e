// Package playerjs resolves the platform's player source and exposes the
// signing capabilities derived from it: the signature timestamp and the
// sig/n URL transforms.
package playerjs

import (
	"fmt"
	"net/url"

	"github.com/famomatic/onesie/internal/challenge"
)

// Player is one parsed player build. The embedded transforms hold a live
// script runtime; a Player must only be driven from the dispatcher's
// single task lane.
type Player struct {
	ID  string
	STS int

	transforms challenge.Transforms
}

// ParsePlayer extracts the signature timestamp and the two transform
// functions from player source, evaluating the recovered script through
// the challenge evaluator.
func ParsePlayer(id, js string) (*Player, error) {
	sts, err := extractSTS(js)
	if err != nil {
		return nil, err
	}

	sigSrc, err := extractSigFunction(js)
	if err != nil {
		return nil, err
	}
	nSrc, err := extractNFunction(js)
	if err != nil {
		return nil, err
	}

	script := fmt.Sprintf("var exportedVars = { sigFunction: %s, nFunction: %s };", sigSrc, nSrc)
	transforms, err := challenge.Evaluate(script, nil)
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", id, err)
	}

	return &Player{ID: id, STS: sts, transforms: transforms}, nil
}

// DecipherURL resolves a format's playback URL. Formats arrive either with
// a plain URL or with a signatureCipher whose `s` challenge must be
// transformed and appended under the `sp` parameter name. In both cases
// the `n` throttling parameter, when present, is rewritten through the n
// transform.
func (p *Player) DecipherURL(plainURL, signatureCipher string) (string, error) {
	target := plainURL

	if signatureCipher != "" {
		values, err := url.ParseQuery(signatureCipher)
		if err != nil {
			return "", fmt.Errorf("parse signature cipher: %w", err)
		}
		target = values.Get("url")
		if target == "" {
			return "", fmt.Errorf("signature cipher carries no url")
		}
		sig, err := p.transforms.Sig(values.Get("s"))
		if err != nil {
			return "", fmt.Errorf("decipher signature: %w", err)
		}
		param := values.Get("sp")
		if param == "" {
			param = "signature"
		}

		parsed, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parse stream url: %w", err)
		}
		query := parsed.Query()
		query.Set(param, sig)
		parsed.RawQuery = query.Encode()
		target = parsed.String()
	}

	return p.transformN(target)
}

func (p *Player) transformN(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	query := parsed.Query()
	n := query.Get("n")
	if n == "" {
		return rawURL, nil
	}
	transformed, err := p.transforms.N(n)
	if err != nil {
		return "", fmt.Errorf("transform n parameter: %w", err)
	}
	query.Set("n", transformed)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
