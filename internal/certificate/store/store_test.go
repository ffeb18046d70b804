package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certchain/internal/certificate"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	fixed := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	st, err := New(2, WithClock(func() time.Time { return fixed }))
	s.Require().NoError(err)
	s.store = st
	s.ctx = context.Background()
}

func record(id string) certificate.Record {
	return certificate.Record{CertificateID: id, StudentName: "Jane Doe", Proficiencies: []string{"AI"}}
}

func (s *StoreSuite) TestSaveAndFind() {
	s.Require().NoError(s.store.Save(s.ctx, record("CERT-1"), "0xabc", SourceIssuance))

	got, err := s.store.Find(s.ctx, "CERT-1")
	s.Require().NoError(err)
	s.Equal("0xabc", got.TransactionRef)
	s.Equal(SourceIssuance, got.Source)
	s.Equal(2025, got.StoredAt.Year())
	s.True(record("CERT-1").Equal(got.Record))
}

func (s *StoreSuite) TestFindMissing() {
	_, err := s.store.Find(s.ctx, "CERT-404")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestRejectsEmptyID() {
	s.Error(s.store.Save(s.ctx, certificate.Record{}, "", SourceIssuance))
}

func (s *StoreSuite) TestKeepsTransactionRefOnResave() {
	s.Require().NoError(s.store.Save(s.ctx, record("CERT-1"), "0xabc", SourceIssuance))
	s.Require().NoError(s.store.Save(s.ctx, record("CERT-1"), "", SourceVerification))

	got, err := s.store.Find(s.ctx, "CERT-1")
	s.Require().NoError(err)
	s.Equal("0xabc", got.TransactionRef)
	s.Equal(SourceVerification, got.Source)
}

func (s *StoreSuite) TestEntriesAreDetached() {
	r := record("CERT-1")
	s.Require().NoError(s.store.Save(s.ctx, r, "", SourceIssuance))
	r.Proficiencies[0] = "mutated"

	got, err := s.store.Find(s.ctx, "CERT-1")
	s.Require().NoError(err)
	got.Record.Proficiencies[0] = "mutated again"

	again, err := s.store.Find(s.ctx, "CERT-1")
	s.Require().NoError(err)
	s.Equal([]string{"AI"}, again.Record.Proficiencies)
}

func (s *StoreSuite) TestEvictsLeastRecentlyUsed() {
	s.Require().NoError(s.store.Save(s.ctx, record("CERT-1"), "", SourceIssuance))
	s.Require().NoError(s.store.Save(s.ctx, record("CERT-2"), "", SourceIssuance))
	_, err := s.store.Find(s.ctx, "CERT-1")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(s.ctx, record("CERT-3"), "", SourceIssuance))

	s.Equal(2, s.store.Len())
	_, err = s.store.Find(s.ctx, "CERT-2")
	s.ErrorIs(err, ErrNotFound)
}
