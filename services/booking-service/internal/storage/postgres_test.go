package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestApplySetting(t *testing.T) {
	st := model.DefaultSettings()
	applySetting(&st, settingBookingPaused, "true")
	applySetting(&st, settingStoreDiscount, " 15 ")
	applySetting(&st, settingReviewDelay, "garbage")
	applySetting(&st, settingServiceDiscount+"cut", "30")
	applySetting(&st, "unrelated", "1")

	assert.True(t, st.BookingPaused)
	assert.Equal(t, 15, st.StoreDiscountPct)
	assert.Equal(t, model.DefaultReviewDelayHours, st.ReviewDelayHours)
	assert.Equal(t, map[string]int{"cut": 30}, st.ServiceDiscountPct)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40001"}), booking.ErrSerialization)
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40P01"}), booking.ErrSerialization)
	assert.ErrorIs(t, classify(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"})), booking.ErrSlotTaken)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classify(plain))

	wrapped := fmt.Errorf("%w: x", booking.ErrSlotTaken)
	assert.Same(t, wrapped, classify(wrapped))
}
