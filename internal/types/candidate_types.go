package types

// PersonalInfo 候选人联系信息，所有字段均可为空
type PersonalInfo struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	SocialLinks *string `json:"social_links"`
}

// WorkEntry 一段工作经历
type WorkEntry struct {
	JobTitle *string `json:"job_title"`
	Company  *string `json:"company"`
	Address  *string `json:"address"`
	// Duration 原始任职时长文本，例如 "2 years 3 months" 或 "July 2021 - Present"
	Duration         *string  `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

// Education 一段教育经历
type Education struct {
	Degree      *string `json:"degree"`
	Institution *string `json:"institution"`
	Duration    *string `json:"duration"`
}

// Project 一个项目经历
type Project struct {
	Title            *string  `json:"title"`
	Description      *string  `json:"description"`
	TechnologiesUsed []string `json:"technologies_used"`
}

// Certification 一项证书
type Certification struct {
	Title               *string `json:"title"`
	IssuingOrganization *string `json:"issuing_organization"`
	DateIssued          *string `json:"date_issued"`
}

// Achievement 一项成就
type Achievement struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// CandidateRecord 规范化后的候选人记录。
// TotalExperience 和 RelevantExperience 由服务端重新计算，
// 不采信抽取服务返回的数值，避免口径不一致。
type CandidateRecord struct {
	PersonalInfo       *PersonalInfo      `json:"personal_info"`
	CareerObjective    *string            `json:"career_objective"`
	Skills             []string           `json:"skills"`
	Experience         []WorkEntry        `json:"experience"`
	Education          []Education        `json:"education"`
	Projects           []Project          `json:"projects"`
	Certifications     []Certification    `json:"certifications"`
	Achievements       []Achievement      `json:"achievements"`
	TotalExperience    float64            `json:"total_experience"`
	RelevantExperience map[string]float64 `json:"relevant_experience"`
}

// DisplayName 返回候选人的展示名称。
// 缺失姓名时回退到字面量 "null"，与历史数据保持一致（重名会静默覆盖，见索引管线说明）。
func (c *CandidateRecord) DisplayName() string {
	if c != nil && c.PersonalInfo != nil && c.PersonalInfo.Name != nil && *c.PersonalInfo.Name != "" {
		return *c.PersonalInfo.Name
	}
	return "null"
}

// JobRecord 规范化后的岗位描述记录
type JobRecord struct {
	Role                *string  `json:"role"`
	Experience          *string  `json:"experience"`
	Location            *string  `json:"location"`
	JobDescription      *string  `json:"job_description"`
	KeyResponsibilities []string `json:"key_responsibilities"`
	Qualifications      []string `json:"qualifications"`
	Skills              []string `json:"skills"`
}

// AggregatedCandidates 聚合JSON文件的顶层结构（候选人）
type AggregatedCandidates struct {
	Candidates []*CandidateRecord `json:"candidates"`
}

// AggregatedJobs 聚合JSON文件的顶层结构（岗位描述）
type AggregatedJobs struct {
	JobDescriptions []*JobRecord `json:"job_descriptions"`
}

// DocumentRef 待处理文档的引用（对象存储中的键和声明的媒体类型）
type DocumentRef struct {
	Key         string
	ContentType string
}

// EmbeddingUnit 索引阶段的瞬态单元：一段文本、其来源标识和序号。
// 由产生它的索引调用独占，upsert确认后即丢弃。
type EmbeddingUnit struct {
	Text       string
	SourceType string
	Sequence   int
}
