package assembler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/calibration"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/classifier"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/identity"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/realitycheck"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/oddsmath"
)

// MarketInput gathers everything one market's decision is computed from
type MarketInput struct {
	Snapshot *models.OddsSnapshot
	SimCtx   *models.SimulationContext
	Result   *models.SimulationResult
	RCL      realitycheck.Outcome

	DataQuality       float64
	InjuryUncertainty float64
	RosterAvailable   bool

	TraceID string
	Now     time.Time
}

// Assembler builds MarketDecisions and GameDecisions bundles. A decision is
// always produced, approved or blocked, so the audit log sees every pass.
type Assembler struct {
	registry        *sportconfig.Registry
	calEngine       *calibration.Engine
	decisionVersion string
	log             zerolog.Logger
}

// New creates an assembler
func New(registry *sportconfig.Registry, calEngine *calibration.Engine, decisionVersion string, log zerolog.Logger) *Assembler {
	return &Assembler{
		registry:        registry,
		calEngine:       calEngine,
		decisionVersion: decisionVersion,
		log:             log.With().Str("component", "assembler").Logger(),
	}
}

// BuildMarketDecision classifies one (game, market_type) at one context hash
func (a *Assembler) BuildMarketDecision(in MarketInput) (models.MarketDecision, error) {
	result := in.Result
	snap := in.Snapshot

	cfg, err := a.registry.ConfigFor(result.Sport)
	if err != nil {
		return models.MarketDecision{}, err
	}

	// Contract violations are hard errors, never auto-corrected
	if err := a.registry.ValidateMarketContract(result.Sport, result.MarketType, result.Settlement); err != nil {
		return models.MarketDecision{}, err
	}

	decision := models.MarketDecision{
		GameID:          result.GameID,
		Sport:           result.Sport,
		MarketType:      result.MarketType,
		ContextHash:     result.ContextHash,
		DecisionVersion: a.decisionVersion,
		TraceID:         in.TraceID,
		ComputedAt:      in.Now,
	}
	if decision.TraceID == "" {
		decision.TraceID = uuid.NewString()
	}

	var integrity []string
	if !in.RosterAvailable {
		integrity = append(integrity, models.ReasonRosterUnavailable)
	}
	if in.Now.Sub(snap.CapturedAt) > time.Duration(cfg.MaxOddsAgeSeconds)*time.Second {
		integrity = append(integrity, models.ReasonStaleOdds)
	}
	if result.ContextHash != in.SimCtx.ContextHash {
		integrity = append(integrity, models.ReasonContextMismatch)
	}

	market, hasMarket := snap.Market(result.MarketType)
	if !hasMarket || len(market.Prices) == 0 {
		integrity = append(integrity, models.ReasonMissingMarketLine)
		decision.ModelPreferenceSelectionID = models.SelectionInvalid
		decision.Classification = models.ClassificationBlocked
		decision.ReleaseStatus = models.ReleaseBlockedMarketMissing
		decision.Reasons = integrity
		decision.CalibrationVersion = calibration.InitialVersion
		decision.InputsHash, _ = identity.InputsHash(result.ContextHash, result.MarketType, nil, 0, decision.CalibrationVersion, a.decisionVersion)
		return decision, nil
	}

	lineMarket := result.MarketType == models.MarketSpread || result.MarketType == models.MarketTotal
	if lineMarket && market.Line == nil {
		integrity = append(integrity, models.ReasonMissingMarketLine)
	}

	selections, err := identity.SelectionsForMarket(result.GameID, result.MarketType, market.Line, snap.BookKey, snap.HomeTeamName, snap.AwayTeamName)
	if err != nil {
		return models.MarketDecision{}, fmt.Errorf("error resolving selections: %w", err)
	}

	preferredSide := result.PreferredSide()
	preference := findSelection(selections, preferredSide)
	if preference == nil {
		integrity = append(integrity, models.ReasonMalformedCompetitors)
		decision.ModelPreferenceSelectionID = models.SelectionInvalid
	} else {
		decision.ModelPreferenceSelectionID = preference.SelectionID
	}

	price, hasPrice := market.Price(preferredSide)
	if !hasPrice {
		integrity = append(integrity, models.ReasonMissingMarketLine)
	} else {
		decision.MarketOdds = price.American
	}
	decision.MarketLine = market.Line

	pRaw := result.Probabilities[preferredSide]
	decision.ModelProbRaw = pRaw
	decision.MarketImpliedProb = a.marketImpliedProb(result, market, preferredSide)

	modelValue, marketValue := a.anchorValues(result, market, pRaw)

	calOut := a.calEngine.Apply(cfg, calibration.Input{
		Sport:             result.Sport,
		MarketType:        result.MarketType,
		PRaw:              pRaw,
		ModelValue:        modelValue,
		MarketValue:       marketValue,
		RawEdge:           pRaw - decision.MarketImpliedProb,
		SigmaCurrent:      result.SigmaCurrent,
		DataQuality:       in.DataQuality,
		InjuryUncertainty: in.InjuryUncertainty,
	})
	decision.ModelProbCalibrated = calOut.PAdjusted
	decision.CalibrationVersion = calOut.Version

	decision.EdgePoints = a.edgePoints(result, market)

	ev := 0.0
	if hasPrice {
		ev = a.expectedValue(result, calOut.PAdjusted, price.American)
	}
	decision.EdgeEV = ev

	tier, tierReasons := classifier.Classify(cfg, classifier.Input{
		MarketType:         result.MarketType,
		ProbEdge:           calOut.PAdjusted - decision.MarketImpliedProb,
		EV:                 ev,
		CalibrationPublish: calOut.Publish,
		VarianceDowngraded: calOut.Downgraded,
		RCLPassed:          in.RCL.Passed,
		IntegrityReasons:   integrity,
		EdgePoints:         decision.EdgePoints,
		MarketLine:         market.Line,
		ModelLine:          result.ModelFairLine,
	})
	decision.Classification = tier
	decision.Reasons = append(decision.Reasons, tierReasons...)
	decision.Reasons = append(decision.Reasons, calOut.BlockReasons...)
	decision.Reasons = append(decision.Reasons, in.RCL.Reasons...)

	if tier.Playable() && calOut.Publish {
		id := decision.ModelPreferenceSelectionID
		decision.RecommendedSelectionID = &id
	}

	decision.InputsHash, err = identity.InputsHash(result.ContextHash, result.MarketType, market.Line, decision.MarketOdds, decision.CalibrationVersion, a.decisionVersion)
	if err != nil {
		return models.MarketDecision{}, fmt.Errorf("error computing inputs hash: %w", err)
	}

	// Validator invariants decide the release status
	violations := ValidateDecision(cfg, result.Settlement, decision, selections, preferredSide)
	switch {
	case len(violations) > 0:
		decision.Classification = models.ClassificationBlocked
		decision.ReleaseStatus = models.ReleaseBlockedIntegrity
		decision.RecommendedSelectionID = nil
		decision.Reasons = append(decision.Reasons, models.ReasonValidatorViolation)
		decision.Reasons = append(decision.Reasons, violations...)
		a.log.Warn().Str("game", decision.GameID).Str("market", string(decision.MarketType)).
			Strs("violations", violations).Msg("decision blocked by validator")

	case decision.Classification == models.ClassificationBlocked:
		decision.ReleaseStatus = models.ReleaseBlockedIntegrity
		decision.RecommendedSelectionID = nil

	default:
		decision.ReleaseStatus = models.ReleaseApproved
	}

	return decision, nil
}

// BuildGameDecisions bundles the per-market decisions for one game. All
// markets share the snapshot, context, and computed_at; the bundle inputs
// hash covers every market decision.
func (a *Assembler) BuildGameDecisions(snap *models.OddsSnapshot, decisions []models.MarketDecision, now time.Time) (models.GameDecisions, error) {
	bundle := models.GameDecisions{
		GameID:          snap.GameID,
		Sport:           snap.Sport,
		HomeTeamName:    snap.HomeTeamName,
		AwayTeamName:    snap.AwayTeamName,
		DecisionVersion: a.decisionVersion,
		ComputedAt:      now,
	}

	hashes := make([]string, 0, len(decisions))
	for i := range decisions {
		d := decisions[i]
		d.ComputedAt = now
		switch d.MarketType {
		case models.MarketSpread:
			bundle.Spread = &d
		case models.MarketMoneyline2Way, models.MarketMoneyline3Way:
			bundle.Moneyline = &d
		case models.MarketTotal:
			bundle.Total = &d
		}
		hashes = append(hashes, d.InputsHash)
	}

	inputsHash, err := identity.ContentHash(hashes)
	if err != nil {
		return models.GameDecisions{}, fmt.Errorf("error hashing bundle: %w", err)
	}
	bundle.InputsHash = inputsHash

	return bundle, nil
}

// marketImpliedProb prefers the simulator's devigged probabilities and falls
// back to devigging the snapshot prices directly
func (a *Assembler) marketImpliedProb(result *models.SimulationResult, market *models.MarketLines, side models.Side) float64 {
	if p, exists := result.DevigMarketProbs[side]; exists && p > 0 {
		return p
	}

	price, hasPrice := market.Price(side)
	if !hasPrice {
		return 0
	}
	otherSide := opposite(side)
	otherPrice, hasOther := market.Price(otherSide)
	if !hasOther {
		implied, err := oddsmath.AmericanToImpliedProbability(price.American)
		if err != nil {
			return 0
		}
		return implied
	}

	p1, err1 := oddsmath.AmericanToImpliedProbability(price.American)
	p2, err2 := oddsmath.AmericanToImpliedProbability(otherPrice.American)
	if err1 != nil || err2 != nil {
		return 0
	}

	fair1, _, err := oddsmath.RemoveVigMultiplicative(p1, p2)
	if err != nil {
		return p1
	}
	return fair1
}

// anchorValues picks the model/market pair the anchor penalty compares:
// fair lines for line markets, probabilities for moneylines
func (a *Assembler) anchorValues(result *models.SimulationResult, market *models.MarketLines, pRaw float64) (modelValue, marketValue float64) {
	switch result.MarketType {
	case models.MarketSpread, models.MarketTotal:
		if result.ModelFairLine != nil && market.Line != nil {
			return *result.ModelFairLine, *market.Line
		}
		return 0, 0
	default:
		return pRaw, a.marketImpliedProb(result, market, result.PreferredSide())
	}
}

// edgePoints is the signed line edge, model_line − market_line; zero for
// moneylines
func (a *Assembler) edgePoints(result *models.SimulationResult, market *models.MarketLines) float64 {
	if result.MarketType != models.MarketSpread && result.MarketType != models.MarketTotal {
		return 0
	}
	if result.ModelFairLine == nil || market.Line == nil {
		return 0
	}
	return *result.ModelFairLine - *market.Line
}

func (a *Assembler) expectedValue(result *models.SimulationResult, pAdjusted float64, american int) float64 {
	var ev float64
	var err error

	if result.MarketType == models.MarketMoneyline3Way {
		ev, err = oddsmath.ExpectedValue3Way(pAdjusted, result.Probabilities[models.SideDraw], american)
	} else {
		ev, err = oddsmath.ExpectedValue2WayWithPush(pAdjusted, result.PushProb, american)
	}

	if err != nil {
		return 0
	}
	return ev
}

func findSelection(selections []models.Selection, side models.Side) *models.Selection {
	for i := range selections {
		if selections[i].Side == side {
			return &selections[i]
		}
	}
	return nil
}

func opposite(side models.Side) models.Side {
	switch side {
	case models.SideHome:
		return models.SideAway
	case models.SideAway:
		return models.SideHome
	case models.SideOver:
		return models.SideUnder
	case models.SideUnder:
		return models.SideOver
	}
	return side
}
