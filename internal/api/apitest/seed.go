package apitest

// Seeded ids.
const (
	AdminID    int64 = 1
	Teacher1ID int64 = 2
	Teacher2ID int64 = 3
	Student1ID int64 = 4
	Student2ID int64 = 5
	Student3ID int64 = 6

	PythonCourseID int64 = 1
	FlaskCourseID  int64 = 2
	DataCourseID   int64 = 3
)

// Seeded passwords.
const (
	AdminPassword   = "admin123"
	TeacherPassword = "teacher123"
	StudentPassword = "student123"
)

// Seed loads the sample school: one admin, two teachers, three students and
// three courses, with student1 in Python and Flask, student2 in Python and
// student3 in Data Science, each graded.
func Seed(s *Server) {
	s.AddUser(User{ID: AdminID, Username: "admin", Email: "admin@school.test", Password: AdminPassword, Role: "admin"})
	s.AddUser(User{ID: Teacher1ID, Username: "teacher1", Email: "teacher1@school.test", Password: TeacherPassword, Role: "teacher"})
	s.AddUser(User{ID: Teacher2ID, Username: "teacher2", Email: "teacher2@school.test", Password: TeacherPassword, Role: "teacher"})
	s.AddUser(User{ID: Student1ID, Username: "student1", Email: "student1@school.test", Password: StudentPassword, Role: "student"})
	s.AddUser(User{ID: Student2ID, Username: "student2", Email: "student2@school.test", Password: StudentPassword, Role: "student"})
	s.AddUser(User{ID: Student3ID, Username: "student3", Email: "student3@school.test", Password: StudentPassword, Role: "student"})

	s.AddCourse(Course{ID: PythonCourseID, Name: "Introduction to Python", Capacity: 30, Timeslot: "MW 10:00 AM - 11:30 AM", TeacherID: Teacher1ID})
	s.AddCourse(Course{ID: FlaskCourseID, Name: "Web Development with Flask", Capacity: 25, Timeslot: "TTH 1:00 PM - 2:30 PM", TeacherID: Teacher1ID})
	s.AddCourse(Course{ID: DataCourseID, Name: "Data Science Fundamentals", Capacity: 20, Timeslot: "MF 3:00 PM - 4:30 PM", TeacherID: Teacher2ID})

	s.Enroll(Student1ID, PythonCourseID)
	s.Enroll(Student1ID, FlaskCourseID)
	s.Enroll(Student2ID, PythonCourseID)
	s.Enroll(Student3ID, DataCourseID)

	s.SetGrade(Student1ID, PythonCourseID, 85.5)
	s.SetGrade(Student1ID, FlaskCourseID, 92.0)
	s.SetGrade(Student2ID, PythonCourseID, 78.5)
	s.SetGrade(Student3ID, DataCourseID, 88.0)
}
