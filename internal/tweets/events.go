package tweets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hypexbt/hypexbt/internal/sources"
)

var launchTemplates = []string{
	"🚀 New token alert! %s ($%s) just launched on @LiquidLaunchHL 🚀\n\n#HyperLiquid #LiquidLaunch #%s",
	"👀 Fresh listing: %s ($%s) is now live on @LiquidLaunchHL\n\n#HyperLiquid #LiquidLaunch",
	"🆕 %s ($%s) has arrived on @LiquidLaunchHL. Welcome aboard!\n\n#HyperLiquid #LiquidLaunch #%s",
	"📢 Launch day for %s ($%s) on @LiquidLaunchHL!\n\n#HyperLiquid #NewToken",
	"✨ Say hello to %s ($%s), the newest token on @LiquidLaunchHL\n\n#HyperLiquid #LiquidLaunch #%s",
}

var graduationTemplates = []string{
	"🎓 Token Graduation Alert! $%s has graduated from @LiquidLaunchHL and is moving to the big leagues 🎓\n\n#HyperLiquid #LiquidLaunch",
	"🏆 Congrats to $%s on graduating from @LiquidLaunchHL!\n\n#HyperLiquid #LiquidLaunch #%s",
	"🎉 $%s just graduated from @LiquidLaunchHL. Onwards and upwards!\n\n#HyperLiquid #Graduation",
	"📜 Diploma earned: $%s has completed its @LiquidLaunchHL journey 🎓\n\n#HyperLiquid #LiquidLaunch #%s",
	"🥳 Another graduate! $%s leaves @LiquidLaunchHL for the main market\n\n#HyperLiquid #LiquidLaunch",
}

// TokenLaunch announces new listings spotted on the LiquidLaunch timeline.
// Each symbol is announced once per process lifetime.
type TokenLaunch struct {
	ll *sources.LiquidLaunch

	mu        sync.Mutex
	announced map[string]bool
}

func NewTokenLaunch(ll *sources.LiquidLaunch) *TokenLaunch {
	return &TokenLaunch{ll: ll, announced: make(map[string]bool)}
}

func (g *TokenLaunch) Source() string { return SourceLaunch }

func (g *TokenLaunch) Generate(ctx context.Context) (*Draft, error) {
	events, err := g.ll.Launches(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("token launches: %w", err)
	}

	ev, ok := g.claim(events)
	if !ok {
		return nil, ErrNothingToPost
	}

	text := renderEvent(pick(launchTemplates), ev.Name, ev.Symbol)
	return &Draft{Action: ActionTweet, Text: text, Source: SourceLaunch}, nil
}

func (g *TokenLaunch) claim(events []sources.TokenEvent) (sources.TokenEvent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ev := range events {
		if !g.announced[ev.Symbol] {
			g.announced[ev.Symbol] = true
			return ev, true
		}
	}
	return sources.TokenEvent{}, false
}

// TokenGraduation announces tokens graduating off LiquidLaunch.
type TokenGraduation struct {
	ll *sources.LiquidLaunch

	mu        sync.Mutex
	announced map[string]bool
}

func NewTokenGraduation(ll *sources.LiquidLaunch) *TokenGraduation {
	return &TokenGraduation{ll: ll, announced: make(map[string]bool)}
}

func (g *TokenGraduation) Source() string { return SourceGraduation }

func (g *TokenGraduation) Generate(ctx context.Context) (*Draft, error) {
	events, err := g.ll.Graduations(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("token graduations: %w", err)
	}

	g.mu.Lock()
	var ev sources.TokenEvent
	found := false
	for _, e := range events {
		if !g.announced[e.Symbol] {
			g.announced[e.Symbol] = true
			ev = e
			found = true
			break
		}
	}
	g.mu.Unlock()

	if !found {
		return nil, ErrNothingToPost
	}
	text := renderEvent(pick(graduationTemplates), "", ev.Symbol)
	return &Draft{Action: ActionTweet, Text: text, Source: SourceGraduation}, nil
}

// renderEvent fills a template whose verb count varies: launch templates
// take (name, symbol[, symbol]); graduation templates take (symbol[,
// symbol]). Extra hashtag slots reuse the symbol.
func renderEvent(tmpl, name, symbol string) string {
	args := make([]any, 0, 3)
	if name != "" {
		args = append(args, name)
	}
	args = append(args, symbol)
	if countVerbs(tmpl) > len(args) {
		args = append(args, symbol)
	}
	return fmt.Sprintf(tmpl, args...)
}

func countVerbs(tmpl string) int {
	n := 0
	for i := 0; i+1 < len(tmpl); i++ {
		if tmpl[i] == '%' && tmpl[i+1] == 's' {
			n++
		}
	}
	return n
}
