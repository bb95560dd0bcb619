package patients

import "context"

// TemplateVariables returns the values message templates may reference for p.
// Every key is always present so templates render for patients at any stage.
func TemplateVariables(p *Patient) map[string]any {
	vars := map[string]any{
		"Name":             p.Name,
		"Phone":            p.Phone,
		"Age":              p.Age,
		"Region":           p.Region,
		"CallInDate":       p.CallInDate.String(),
		"ReservationDate":  "",
		"ReservationTime":  "",
		"VisitDate":        "",
		"DoctorName":       "",
		"NextCallbackDate": "",
	}
	if p.Reservation != nil {
		vars["ReservationDate"] = p.Reservation.Date.String()
		vars["ReservationTime"] = p.Reservation.Time
	}
	if p.FirstVisitDate != nil {
		vars["VisitDate"] = p.FirstVisitDate.String()
	}
	if p.PostVisitConsultation != nil {
		vars["DoctorName"] = p.PostVisitConsultation.DoctorName
	}
	if p.PostVisitStatusInfo != nil && p.PostVisitStatusInfo.NextCallbackDate != nil {
		vars["NextCallbackDate"] = p.PostVisitStatusInfo.NextCallbackDate.String()
	}
	return vars
}

// Variables loads a patient and returns its template variables.
func (s *Service) Variables(ctx context.Context, id string) (map[string]any, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return TemplateVariables(p), nil
}
