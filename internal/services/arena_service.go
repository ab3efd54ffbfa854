package services

import (
	"context"
	"strconv"
	"time"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/database"
	"arena-indexer/internal/events"
	"arena-indexer/internal/models"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBigBetThreshold is 1 SOL in lamports
const DefaultBigBetThreshold int64 = 1_000_000_000

// ArenaService indexes the arena lifecycle: creation, joins, resolution and
// claims.
type ArenaService struct {
	mutator
	bigBetThreshold int64
}

// NewArenaService creates a new arena service
func NewArenaService(db *gorm.DB, notifier *notify.Notifier, log *logrus.Logger, bigBetThreshold int64) *ArenaService {
	if bigBetThreshold <= 0 {
		bigBetThreshold = DefaultBigBetThreshold
	}
	return &ArenaService{mutator: newMutator(db, notifier, log), bigBetThreshold: bigBetThreshold}
}

// CreateArena inserts the market and one aggregate row per outcome. A market
// that already exists is left untouched.
func (s *ArenaService) CreateArena(ctx context.Context, signature string, p *events.CreateArena) error {
	endTime := s.now()
	if p.EndTime > 0 {
		endTime = time.Unix(p.EndTime, 0).UTC()
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	applied, err := s.apply(ctx, "create arena", func(tx *gorm.DB, _ *repository.Repository, out *outbox) error {
		market := &models.Market{
			Account:     p.ArenaAccount,
			Creator:     p.Creator,
			Title:       p.Title,
			Description: p.Description,
			Question:    p.Question,
			Outcomes:    models.StringList(p.Outcomes),
			Tags:        models.StringList(tags),
			EntryFee:    p.EntryFee.Int64(),
			EndTime:     endTime,
			TxSignature: signature,
		}
		if err := insertOnce(tx, market, "insert arena"); err != nil {
			return err
		}
		stats := make([]models.MarketOutcome, len(p.Outcomes))
		for i := range stats {
			stats[i] = models.MarketOutcome{MarketID: market.ID, OutcomeIndex: i}
		}
		if err := tx.Create(&stats).Error; err != nil {
			return database.Classify(err, "insert outcome aggregates")
		}
		out.add(notify.Notification{
			Type:    notify.ChannelMarketUpdate,
			ArenaID: p.ArenaAccount,
			Data:    map[string]any{"action": "created", "title": p.Title, "outcomes": p.Outcomes},
		})
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindCreateArena.String(), signature).WithField("arena", p.ArenaAccount)
	if !applied {
		entry.Info("Arena already exists")
		return nil
	}
	entry.Info("Arena created")
	return nil
}

// JoinArena records a participant and adds the stake to the market and
// outcome aggregates. A wallet joins a market at most once.
func (s *ArenaService) JoinArena(ctx context.Context, signature string, p *events.JoinArena) error {
	amount := p.Amount.Int64()
	outcome := *p.OutcomeChosen

	var outcomeName string
	applied, err := s.apply(ctx, "join arena", func(tx *gorm.DB, repo *repository.Repository, out *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		if err := checkOutcome(market, outcome, "outcome"); err != nil {
			return err
		}
		outcomeName = market.Outcomes[outcome]

		existing, err := repo.GetParticipant(ctx, market.ID, p.Wallet)
		if err != nil {
			return err
		}
		if existing != nil {
			return errAlreadyApplied
		}

		now := s.now()
		participant := &models.Participant{
			MarketID:      market.ID,
			Wallet:        p.Wallet,
			OutcomeChosen: outcome,
			Stake:         amount,
			TxSignature:   signature,
			JoinedAt:      now,
		}
		if err := insertOnce(tx, participant, "insert participant"); err != nil {
			return err
		}

		if err := tx.Model(&models.Market{}).Where("id = ?", market.ID).Updates(map[string]interface{}{
			"pot":               gorm.Expr("pot + ?", amount),
			"participant_count": gorm.Expr("participant_count + 1"),
			"last_activity_at":  now,
		}).Error; err != nil {
			return database.Classify(err, "update arena totals")
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "market_id"}, {Name: "outcome_index"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"pot":               gorm.Expr("market_outcomes.pot + ?", amount),
				"participant_count": gorm.Expr("market_outcomes.participant_count + 1"),
			}),
		}).Create(&models.MarketOutcome{
			MarketID:         market.ID,
			OutcomeIndex:     outcome,
			Pot:              amount,
			ParticipantCount: 1,
		}).Error; err != nil {
			return database.Classify(err, "update outcome totals")
		}

		out.add(notify.Notification{
			Type:    notify.ChannelMarketUpdate,
			ArenaID: p.ArenaAccount,
			Data:    map[string]any{"action": "joined", "wallet": p.Wallet, "outcome": outcome, "amount": amount},
		})
		if amount > s.bigBetThreshold {
			out.add(notify.Notification{
				Type:    notify.TypeBigBet,
				ArenaID: p.ArenaAccount,
				Data:    map[string]any{"wallet": p.Wallet, "amount": amount, "outcome": strconv.Itoa(outcome)},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindJoinArena.String(), signature).WithFields(logrus.Fields{
		"arena":  p.ArenaAccount,
		"wallet": p.Wallet,
	})
	if !applied {
		entry.Info("Participant already exists")
		return nil
	}
	entry.WithField("outcome", outcomeName).Info("Participant joined")
	return nil
}

// ResolveArena sets the winning outcome once. Resolving a resolved market is
// a no-op even when the winner differs.
func (s *ArenaService) ResolveArena(ctx context.Context, signature string, p *events.ResolveArena) error {
	winner := *p.WinnerOutcome

	applied, err := s.apply(ctx, "resolve arena", func(tx *gorm.DB, repo *repository.Repository, out *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		if market.Resolved {
			return errAlreadyApplied
		}
		if err := checkOutcome(market, winner, "winner outcome"); err != nil {
			return err
		}

		res := tx.Model(&models.Market{}).
			Where("id = ? AND resolved = ?", market.ID, false).
			Updates(map[string]interface{}{
				"resolved":         true,
				"winner_outcome":   winner,
				"last_activity_at": s.now(),
			})
		if res.Error != nil {
			return database.Classify(res.Error, "resolve arena")
		}
		if res.RowsAffected == 0 {
			return errAlreadyApplied
		}

		out.add(notify.Notification{
			Type:    notify.TypeWinnerAnnounced,
			ArenaID: p.ArenaAccount,
			Data:    map[string]any{"winnerOutcome": market.Outcomes[winner], "totalPot": market.Pot},
		})
		out.add(notify.Notification{
			Type:    notify.ChannelMarketUpdate,
			ArenaID: p.ArenaAccount,
			Data:    map[string]any{"action": "resolved", "winnerOutcome": winner},
		})
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindResolveArena.String(), signature).WithField("arena", p.ArenaAccount)
	if !applied {
		entry.Info("Arena already resolved")
		return nil
	}
	entry.WithField("winner", winner).Info("Arena resolved")
	return nil
}

// ClaimWinnings flips a participant's claimed flag once.
func (s *ArenaService) ClaimWinnings(ctx context.Context, signature string, p *events.ClaimWinnings) error {
	applied, err := s.apply(ctx, "claim winnings", func(tx *gorm.DB, repo *repository.Repository, _ *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		participant, err := repo.GetParticipant(ctx, market.ID, p.Wallet)
		if err != nil {
			return err
		}
		if participant == nil {
			return apperrors.NotFound(repository.CodeParticipantNotFound, "Participant not found: %s", p.Wallet)
		}
		if participant.Claimed {
			return errAlreadyApplied
		}

		res := tx.Model(&models.Participant{}).
			Where("id = ? AND claimed = ?", participant.ID, false).
			Updates(map[string]interface{}{"claimed": true, "claimed_at": s.now()})
		if res.Error != nil {
			return database.Classify(res.Error, "mark claimed")
		}
		if res.RowsAffected == 0 {
			return errAlreadyApplied
		}
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindClaimWinnings.String(), signature).WithFields(logrus.Fields{
		"arena":  p.ArenaAccount,
		"wallet": p.Wallet,
	})
	if !applied {
		entry.Info("Winnings already claimed")
		return nil
	}
	entry.Info("Winnings claimed")
	return nil
}

// TouchActivity is the fallback for unrecognised event types. It stamps last
// activity on the referenced market when there is one and never fails.
func (s *ArenaService) TouchActivity(ctx context.Context, eventType, signature string, p *events.Generic) error {
	entry := s.entry(eventType, signature)
	if p.ArenaAccount == "" {
		entry.Info("Unknown transaction type without arena reference, acknowledging")
		return nil
	}

	n, err := s.repo.TouchMarketActivity(ctx, p.ArenaAccount, s.now())
	if err != nil {
		entry.WithError(err).Warn("Failed to record generic activity")
		return nil
	}
	entry.WithFields(logrus.Fields{"arena": p.ArenaAccount, "updated": n}).Info("Processed generic transaction")
	return nil
}
