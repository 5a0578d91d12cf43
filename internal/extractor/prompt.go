package extractor

// candidateSchemaJSON 发送给抽取服务的候选人schema字面量
const candidateSchemaJSON = `{
    "personal_info": {
        "name": "string or null",
        "email": "string or null",
        "phone": "string or null",
        "address": "string or null",
        "social_links": "string or null"
    },
    "career_objective": "string or null",
    "skills": ["string"],
    "experience": [
        {
            "job_title": "string or null",
            "company": "string or null",
            "location": "string or null",
            "duration": "string or null",
            "responsibilities": ["string"]
        }
    ],
    "education": [
        {
            "degree": "string or null",
            "institution": "string or null",
            "duration": "string or null"
        }
    ],
    "projects": [
        {
            "title": "string or null",
            "description": "string or null",
            "technologies_used": ["string"]
        }
    ],
    "certifications": [
        {
            "title": "string or null",
            "issuing_organization": "string or null",
            "date_issued": "string or null"
        }
    ],
    "achievements": [
        {
            "title": "string or null",
            "description": "string or null"
        }
    ],
    "total_experience": "float or null"
}`

// jobSchemaJSON 发送给抽取服务的岗位描述schema字面量
const jobSchemaJSON = `{
    "role": "string or null",
    "experience": "string or null",
    "location": "string or null",
    "job_description": "string or null",
    "key_responsibilities": ["string"],
    "qualifications": ["string"],
    "skills": ["string"]
}`

// CandidateSystemPrompt 简历抽取的system提示。
// 要求模型避免非ASCII标点（例如用'-'而不是'—'），输出可能带```json围栏。
const CandidateSystemPrompt = "You are a structured JSON generator. Convert the provided resume text into a JSON object " +
	"matching the following schema: " + candidateSchemaJSON + ". " +
	"Ensure the JSON strictly adheres to this format. Handle missing fields with null values. " +
	"Fetch only the highest level of education that the candidate has pursued. " +
	"Ensure the response avoids Unicode characters (e.g., use '-' instead of '—'). " +
	"Ensure the accurate location or address of each company is captured exactly as mentioned in the experience section. " +
	"Fetch all details provided in the experience section without omitting any information. " +
	"For education details, include both the full name and short form (e.g., Bachelor of Technology (B.Tech) or Master of Science (M.Sc) or any other degree). " +
	"If the current working location does not have an address, keep the address field null. Do not include the company name in the address."

// JobSystemPrompt 岗位描述抽取的system提示
const JobSystemPrompt = "Extract job details from the given text based on this JSON schema: " + jobSchemaJSON + ".\n" +
	"Ensure the response avoids Unicode characters (e.g., use '-' instead of '—').\n" +
	"Additionally, infer relevant skills based on the qualifications provided."
