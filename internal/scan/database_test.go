package scan

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/labelcheck/internal/vision"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newRecord := func(id, owner string, createdAt time.Time) *Record {
		return &Record{
			ScanID:               id,
			OwnerID:              owner,
			CreatedAt:            createdAt,
			Status:               StatusProcessing,
			ImageURL:             "/files/scan_images/" + owner + "/" + id + "_1.jpg",
			ExtractedIngredients: []string{},
		}
	}

	Describe("CreateScan and GetScan", func() {
		var created *Record

		BeforeEach(func() {
			created = newRecord("scan-1", "user-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
			Expect(db.CreateScan(created)).NotTo(HaveOccurred())
		})

		It("should round-trip the record", func() {
			rec, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ScanID).To(Equal("scan-1"))
			Expect(rec.OwnerID).To(Equal("user-1"))
			Expect(rec.Status).To(Equal(StatusProcessing))
			Expect(rec.ExtractedIngredients).To(BeEmpty())
			Expect(rec.AnalysisResult).To(BeNil())
		})

		It("should fail with ErrNotFound for unknown ids", func() {
			_, err := db.GetScan("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListScansByOwner", func() {
		BeforeEach(func() {
			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			Expect(db.CreateScan(newRecord("scan-a", "user-1", base))).NotTo(HaveOccurred())
			Expect(db.CreateScan(newRecord("scan-b", "user-2", base.Add(time.Minute)))).NotTo(HaveOccurred())
			Expect(db.CreateScan(newRecord("scan-c", "user-1", base.Add(2*time.Minute)))).NotTo(HaveOccurred())
		})

		It("should return only the owner's scans", func() {
			scans, err := db.ListScansByOwner("user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(2))
		})

		It("should order newest first", func() {
			scans, err := db.ListScansByOwner("user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(scans[0].ScanID).To(Equal("scan-c"))
			Expect(scans[1].ScanID).To(Equal("scan-a"))
		})

		It("should return an empty list for unknown owners", func() {
			scans, err := db.ListScansByOwner("nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(BeEmpty())
		})
	})

	Describe("UpdateScan", func() {
		BeforeEach(func() {
			Expect(db.CreateScan(newRecord("scan-1", "user-1", time.Now().UTC()))).NotTo(HaveOccurred())
		})

		When("the expected status matches", func() {
			It("should apply the mutation and return the updated record", func() {
				rec, err := db.UpdateScan("scan-1", StatusProcessing, func(r *Record) {
					r.Status = StatusAnalyzing
					r.ExtractedIngredients = []string{"Water", "Sugar"}
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Status).To(Equal(StatusAnalyzing))
				Expect(rec.ExtractedIngredients).To(Equal([]string{"Water", "Sugar"}))

				stored, err := db.GetScan("scan-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.Status).To(Equal(StatusAnalyzing))
				Expect(stored.ExtractedIngredients).To(Equal([]string{"Water", "Sugar"}))
			})

			It("should persist an analysis result", func() {
				_, err := db.UpdateScan("scan-1", StatusProcessing, func(r *Record) {
					r.Status = StatusComplete
					r.AnalysisResult = &vision.AnalysisResult{
						Score:       7,
						Explanation: "ok",
						Pros:        []string{"a"},
						Cons:        []string{"b"},
					}
				})
				Expect(err).NotTo(HaveOccurred())

				stored, err := db.GetScan("scan-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.AnalysisResult).NotTo(BeNil())
				Expect(stored.AnalysisResult.Score).To(Equal(7))
			})
		})

		When("the status changed underneath the caller", func() {
			It("should fail with ErrStatusConflict and not write", func() {
				_, err := db.UpdateScan("scan-1", StatusError, func(r *Record) {
					r.Status = StatusAnalyzing
				})
				Expect(err).To(MatchError(ErrStatusConflict))

				stored, gerr := db.GetScan("scan-1")
				Expect(gerr).NotTo(HaveOccurred())
				Expect(stored.Status).To(Equal(StatusProcessing))
			})
		})

		When("the record does not exist", func() {
			It("should fail with ErrNotFound", func() {
				_, err := db.UpdateScan("missing", StatusProcessing, func(r *Record) {})
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})
})
