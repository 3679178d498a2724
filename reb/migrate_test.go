package reb_test

import (
	"context"
	"sync"

	"github.com/dtaskrt/dtaskrt/reb"
	"github.com/dtaskrt/dtaskrt/sched"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// I7: Migrate's two-phase meta-then-data protocol round-trips an element's
// size, index, MPI-parent tag, and payload bytes intact between two ranks,
// and completes even when a rank has nothing to send or nothing to receive.
var _ = Describe("Migrate", func() {
	It("round-trips one element's index, parent tag, and payload between ranks", func() {
		cluster := sched.NewLocalCluster(2)

		payload := []byte{1, 2, 3, 4, 5}
		outgoing := []reb.OutgoingMigration{
			{DestRank: 1, Index: 7, MpiParent: 3, Data: payload},
		}

		var incoming []reb.IncomingMigration
		var errSend, errRecv error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			errSend = reb.Migrate(context.Background(), cluster.Rank(0), outgoing, nil)
		}()
		go func() {
			defer wg.Done()
			incoming = []reb.IncomingMigration{{SrcRank: 0}}
			errRecv = reb.Migrate(context.Background(), cluster.Rank(1), nil, incoming)
		}()
		wg.Wait()

		Expect(errSend).NotTo(HaveOccurred())
		Expect(errRecv).NotTo(HaveOccurred())
		Expect(incoming).To(HaveLen(1))
		Expect(incoming[0].Index).To(Equal(7))
		Expect(incoming[0].MpiParent).To(Equal(3))
		Expect(incoming[0].Data).To(Equal(payload))
	})

	It("completes with no migrations in either direction", func() {
		cluster := sched.NewLocalCluster(2)

		var err0, err1 error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err0 = reb.Migrate(context.Background(), cluster.Rank(0), nil, nil)
		}()
		go func() {
			defer wg.Done()
			err1 = reb.Migrate(context.Background(), cluster.Rank(1), nil, nil)
		}()
		wg.Wait()

		Expect(err0).NotTo(HaveOccurred())
		Expect(err1).NotTo(HaveOccurred())
	})
})
