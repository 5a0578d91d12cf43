package extractor

import (
	"fmt"

	"cv-agent-go/internal/types"
)

// SchemaMismatchError 抽取结果中某个字段的形状与预期不符。
// 形状错误使整次校验失败，不接受部分记录；字段缺失或为null则正常落到零值。
type SchemaMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("字段 %s 类型与预期不符: 期望 %s, 实际 %s", e.Field, e.Expected, e.Actual)
}

func mismatch(field, expected string, actual interface{}) error {
	return &SchemaMismatchError{Field: field, Expected: expected, Actual: fmt.Sprintf("%T", actual)}
}

// ValidateCandidate 把抽取服务返回的原始JSON对象映射到候选人记录。
// 纯函数、无状态：对已校验记录的序列化结果再次校验得到相同记录。
// 未知的多余键被忽略（向前兼容）。
// total_experience / relevant_experience 即使出现在输入中也被忽略，由汇总器重新计算。
func ValidateCandidate(raw map[string]interface{}) (*types.CandidateRecord, error) {
	rec := &types.CandidateRecord{
		Skills:             []string{},
		Experience:         []types.WorkEntry{},
		Education:          []types.Education{},
		Projects:           []types.Project{},
		Certifications:     []types.Certification{},
		Achievements:       []types.Achievement{},
		RelevantExperience: map[string]float64{},
	}

	pi, err := optObject(raw, "personal_info")
	if err != nil {
		return nil, err
	}
	if pi != nil {
		info := &types.PersonalInfo{}
		if info.Name, err = optString(pi, "personal_info.name", "name"); err != nil {
			return nil, err
		}
		if info.Email, err = optString(pi, "personal_info.email", "email"); err != nil {
			return nil, err
		}
		if info.Phone, err = optString(pi, "personal_info.phone", "phone"); err != nil {
			return nil, err
		}
		if info.Address, err = optString(pi, "personal_info.address", "address"); err != nil {
			return nil, err
		}
		if info.SocialLinks, err = optString(pi, "personal_info.social_links", "social_links"); err != nil {
			return nil, err
		}
		rec.PersonalInfo = info
	}

	if rec.CareerObjective, err = optString(raw, "career_objective", "career_objective"); err != nil {
		return nil, err
	}
	if rec.Skills, err = stringSlice(raw, "skills"); err != nil {
		return nil, err
	}

	expItems, err := objectSlice(raw, "experience")
	if err != nil {
		return nil, err
	}
	for i, item := range expItems {
		entry := types.WorkEntry{Responsibilities: []string{}}
		path := fmt.Sprintf("experience[%d]", i)
		if entry.JobTitle, err = optString(item, path+".job_title", "job_title"); err != nil {
			return nil, err
		}
		if entry.Company, err = optString(item, path+".company", "company"); err != nil {
			return nil, err
		}
		// 抽取服务的schema里这个字段叫location，历史数据里叫address，两者都接受
		if entry.Address, err = optString(item, path+".address", "address"); err != nil {
			return nil, err
		}
		if entry.Address == nil {
			if entry.Address, err = optString(item, path+".location", "location"); err != nil {
				return nil, err
			}
		}
		if entry.Duration, err = optString(item, path+".duration", "duration"); err != nil {
			return nil, err
		}
		if entry.Responsibilities, err = stringSliceAt(item, path+".responsibilities", "responsibilities"); err != nil {
			return nil, err
		}
		rec.Experience = append(rec.Experience, entry)
	}

	eduItems, err := objectSlice(raw, "education")
	if err != nil {
		return nil, err
	}
	for i, item := range eduItems {
		edu := types.Education{}
		path := fmt.Sprintf("education[%d]", i)
		if edu.Degree, err = optString(item, path+".degree", "degree"); err != nil {
			return nil, err
		}
		if edu.Institution, err = optString(item, path+".institution", "institution"); err != nil {
			return nil, err
		}
		if edu.Duration, err = optString(item, path+".duration", "duration"); err != nil {
			return nil, err
		}
		rec.Education = append(rec.Education, edu)
	}

	projItems, err := objectSlice(raw, "projects")
	if err != nil {
		return nil, err
	}
	for i, item := range projItems {
		proj := types.Project{TechnologiesUsed: []string{}}
		path := fmt.Sprintf("projects[%d]", i)
		if proj.Title, err = optString(item, path+".title", "title"); err != nil {
			return nil, err
		}
		if proj.Description, err = optString(item, path+".description", "description"); err != nil {
			return nil, err
		}
		if proj.TechnologiesUsed, err = stringSliceAt(item, path+".technologies_used", "technologies_used"); err != nil {
			return nil, err
		}
		rec.Projects = append(rec.Projects, proj)
	}

	certItems, err := objectSlice(raw, "certifications")
	if err != nil {
		return nil, err
	}
	for i, item := range certItems {
		cert := types.Certification{}
		path := fmt.Sprintf("certifications[%d]", i)
		if cert.Title, err = optString(item, path+".title", "title"); err != nil {
			return nil, err
		}
		if cert.IssuingOrganization, err = optString(item, path+".issuing_organization", "issuing_organization"); err != nil {
			return nil, err
		}
		if cert.DateIssued, err = optString(item, path+".date_issued", "date_issued"); err != nil {
			return nil, err
		}
		rec.Certifications = append(rec.Certifications, cert)
	}

	achItems, err := objectSlice(raw, "achievements")
	if err != nil {
		return nil, err
	}
	for i, item := range achItems {
		ach := types.Achievement{}
		path := fmt.Sprintf("achievements[%d]", i)
		if ach.Title, err = optString(item, path+".title", "title"); err != nil {
			return nil, err
		}
		if ach.Description, err = optString(item, path+".description", "description"); err != nil {
			return nil, err
		}
		rec.Achievements = append(rec.Achievements, ach)
	}

	return rec, nil
}

// ValidateJob 把抽取服务返回的原始JSON对象映射到岗位描述记录
func ValidateJob(raw map[string]interface{}) (*types.JobRecord, error) {
	rec := &types.JobRecord{
		KeyResponsibilities: []string{},
		Qualifications:      []string{},
		Skills:              []string{},
	}

	var err error
	if rec.Role, err = optString(raw, "role", "role"); err != nil {
		return nil, err
	}
	if rec.Experience, err = optString(raw, "experience", "experience"); err != nil {
		return nil, err
	}
	if rec.Location, err = optString(raw, "location", "location"); err != nil {
		return nil, err
	}
	if rec.JobDescription, err = optString(raw, "job_description", "job_description"); err != nil {
		return nil, err
	}
	if rec.KeyResponsibilities, err = stringSlice(raw, "key_responsibilities"); err != nil {
		return nil, err
	}
	if rec.Qualifications, err = stringSlice(raw, "qualifications"); err != nil {
		return nil, err
	}
	if rec.Skills, err = stringSlice(raw, "skills"); err != nil {
		return nil, err
	}

	return rec, nil
}

// optString 取可空字符串字段。缺失或null返回nil，类型不符返回错误。
// path 是报错时用的完整字段路径，key 是对象里的实际键名。
func optString(obj map[string]interface{}, path, key string) (*string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, mismatch(path, "string", v)
	}
	return &s, nil
}

// stringSlice 取字符串数组字段。缺失或null返回空切片，数组中的null元素被丢弃。
func stringSlice(obj map[string]interface{}, key string) ([]string, error) {
	return stringSliceAt(obj, key, key)
}

func stringSliceAt(obj map[string]interface{}, path, key string) ([]string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, mismatch(path, "array of string", v)
	}
	out := make([]string, 0, len(arr))
	for i, item := range arr {
		if item == nil {
			continue
		}
		s, ok := item.(string)
		if !ok {
			return nil, mismatch(fmt.Sprintf("%s[%d]", path, i), "string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// optObject 取可空对象字段
func optObject(obj map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, mismatch(key, "object", v)
	}
	return m, nil
}

// objectSlice 取对象数组字段。缺失或null返回空切片。
func objectSlice(obj map[string]interface{}, key string) ([]map[string]interface{}, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, mismatch(key, "array of object", v)
	}
	out := make([]map[string]interface{}, 0, len(arr))
	for i, item := range arr {
		if item == nil {
			continue
		}
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, mismatch(fmt.Sprintf("%s[%d]", key, i), "object", item)
		}
		out = append(out, m)
	}
	return out, nil
}
