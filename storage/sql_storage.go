package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"evoting-backend/models"
)

// SQLStore is the gorm-backed Store. The database's constraints, not
// application pre-checks, are the durable guards for voter and vote
// uniqueness; TranslateError turns constraint violations into
// gorm.ErrDuplicatedKey across dialects.
type SQLStore struct {
	db *gorm.DB
}

// Open connects to the database and migrates the schema.
func Open(dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	return NewSQLStore(db)
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	err := db.AutoMigrate(
		&models.Voter{},
		&models.Candidate{},
		&models.Election{},
		&models.Vote{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %v", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) CreateVoter(voter *models.Voter) error {
	err := s.db.Create(voter).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateVoter
	}
	return err
}

func (s *SQLStore) VoterByID(id uint) (*models.Voter, error) {
	var voter models.Voter
	if err := s.db.First(&voter, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &voter, nil
}

func (s *SQLStore) VoterByEmail(email string) (*models.Voter, error) {
	var voter models.Voter
	if err := s.db.Where("email = ?", email).First(&voter).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &voter, nil
}

func (s *SQLStore) VoterByVoterID(voterID string) (*models.Voter, error) {
	var voter models.Voter
	if err := s.db.Where("voter_id = ?", voterID).First(&voter).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &voter, nil
}

func (s *SQLStore) PromoteVoter(id uint) error {
	res := s.db.Model(&models.Voter{}).Where("id = ?", id).Update("role", "admin")
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateCandidate(candidate *models.Candidate) error {
	return s.db.Create(candidate).Error
}

func (s *SQLStore) UpdateCandidate(candidate *models.Candidate) error {
	res := s.db.Model(&models.Candidate{}).Where("id = ?", candidate.ID).Updates(map[string]interface{}{
		"name":          candidate.Name,
		"party":         candidate.Party,
		"age":           candidate.Age,
		"qualification": candidate.Qualification,
		"description":   candidate.Description,
		"is_verified":   candidate.IsVerified,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteCandidate(id uint) error {
	res := s.db.Delete(&models.Candidate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CandidateByID(id uint) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := s.db.First(&candidate, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &candidate, nil
}

func (s *SQLStore) Candidates() ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := s.db.Order("candidate_number").Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *SQLStore) NextCandidateNumber() (uint64, error) {
	var last models.Candidate
	err := s.db.Order("candidate_number desc").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return last.CandidateNumber + 1, nil
}

func (s *SQLStore) ActiveElection() (*models.Election, error) {
	var election models.Election
	err := s.db.Where("is_active = ?", true).Order("id desc").First(&election).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &election, nil
}

// StartElection opens a new election, deactivating any currently active one
// in the same transaction so that at most one election is active.
func (s *SQLStore) StartElection() (*models.Election, error) {
	election := &models.Election{IsActive: true}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Election{}).Where("is_active = ?", true).
			Update("is_active", false).Error
		if err != nil {
			return err
		}
		return tx.Create(election).Error
	})
	if err != nil {
		return nil, err
	}
	return election, nil
}

func (s *SQLStore) StopElection() error {
	return s.db.Model(&models.Election{}).Where("is_active = ?", true).
		Update("is_active", false).Error
}

func (s *SQLStore) CreateVote(vote *models.Vote) error {
	err := s.db.Create(vote).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateVote
	}
	return err
}

func (s *SQLStore) VoteFor(voterID, electionID uint) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.Where("voter_id = ? AND election_id = ?", voterID, electionID).
		First(&vote).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &vote, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
