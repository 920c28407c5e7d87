package validator

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smartpresence/attendance-service/internal/models"
)

// BusinessValidator handles rules that span several fields or need context
type BusinessValidator struct {
	validate *validator.Validate
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateSubjectCreate validates subject creation business rules
func (bv *BusinessValidator) ValidateSubjectCreate(req *models.SubjectCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	errors = append(errors, bv.ValidateSchedule(req.StartTime, req.EndTime)...)

	return errors
}

// ValidateSubjectUpdate validates the schedule that results from applying req to existing
func (bv *BusinessValidator) ValidateSubjectUpdate(req *models.SubjectUpdateRequest, existing *models.Subject) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	start, end := existing.StartTime, existing.EndTime
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	errors = append(errors, bv.ValidateSchedule(start, end)...)

	return errors
}

// ValidateSchedule requires the session to end after it starts on the same day
func (bv *BusinessValidator) ValidateSchedule(start, end string) ValidationErrors {
	s, errS := time.Parse(models.ClockLayout, start)
	e, errE := time.Parse(models.ClockLayout, end)
	if errS != nil || errE != nil {
		return ValidationErrors{{
			Field:   "start_time",
			Message: "must be a time in HH:MM format",
			Value:   start,
			Rule:    "clock_time",
		}}
	}
	if !e.After(s) {
		return ValidationErrors{{
			Field:   "end_time",
			Message: "must be after start_time",
			Value:   end,
			Rule:    "schedule_order",
		}}
	}
	return nil
}

// ValidateManualAttendance rejects records for future sessions
func (bv *BusinessValidator) ValidateManualAttendance(req *models.AttendanceCreateRequest, today time.Time) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	date, err := time.ParseInLocation(models.DateLayout, req.SessionDate, today.Location())
	if err != nil {
		return ValidationErrors{{Field: "session_date", Message: "must match the format 2006-01-02", Value: req.SessionDate, Rule: "datetime"}}
	}
	if date.After(today) {
		errors = append(errors, ValidationError{
			Field:   "session_date",
			Message: "cannot be in the future",
			Value:   req.SessionDate,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidatePasswordChange checks the new password against the current one
func (bv *BusinessValidator) ValidatePasswordChange(req *models.ChangePasswordRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	if req.CurrentPassword == req.NewPassword {
		errors = append(errors, ValidationError{
			Field:   "new_password",
			Message: "must differ from the current password",
			Rule:    "business_logic",
		})
	}
	if strings.TrimSpace(req.NewPassword) != req.NewPassword {
		errors = append(errors, ValidationError{
			Field:   "new_password",
			Message: "cannot start or end with whitespace",
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateDateRange requires from <= to when both are set
func (bv *BusinessValidator) ValidateDateRange(from, to string) ValidationErrors {
	if from == "" || to == "" {
		return nil
	}
	if from > to {
		return ValidationErrors{{
			Field:   "date_to",
			Message: "must not be before date_from",
			Value:   to,
			Rule:    "date_range",
		}}
	}
	return nil
}

// registerCustomRules registers the service's custom tags
func registerCustomRules(validate *validator.Validate) {
	// 128 finite numbers produced by the browser face model
	validate.RegisterValidation("face_descriptor", func(fl validator.FieldLevel) bool {
		values, ok := fl.Field().Interface().([]float64)
		if !ok || len(values) != models.DescriptorLength {
			return false
		}
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
		return true
	})

	// HH:MM, 24-hour clock
	validate.RegisterValidation("clock_time", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if len(value) != 5 {
			return false
		}
		_, err := time.Parse(models.ClockLayout, value)
		return err == nil
	})

	validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})

	validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})

	// 0 = Sunday .. 6 = Saturday, matching time.Weekday
	validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		day := fl.Field().Int()
		return day >= 0 && day <= 6
	})
}
